package main

import (
	"fmt"
	"os"

	"github.com/memovai/contextgit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "memov:", err)
		os.Exit(1)
	}
}
