package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeIgnoreFile(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(contents), 0o644))
}

func TestMatches_ControlDirAlwaysIgnored(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir, ".git")
	require.NoError(t, err)
	require.True(t, m.Matches(".mem/memov.git/config"))
	require.True(t, m.Matches(".git/HEAD"))
}

func TestMatches_MemignoreItselfNeverMatched(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, ".*\n")
	m, err := Load(dir, ".git")
	require.NoError(t, err)
	require.False(t, m.Matches(".memignore"))
}

func TestMatches_GlobAndDirectoryPatterns(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "*.log\nbuild/\n")
	m, err := Load(dir, ".git")
	require.NoError(t, err)

	require.True(t, m.Matches("debug.log"))
	require.True(t, m.Matches("build/output.bin"))
	require.False(t, m.Matches("src/main.go"))
}

func TestMatches_MissingIgnoreFileStillIgnoresControlDir(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir, "")
	require.NoError(t, err)
	require.True(t, m.Matches(".mem/branches.json"))
	require.False(t, m.Matches("README.md"))
}
