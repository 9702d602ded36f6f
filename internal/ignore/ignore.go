// Package ignore implements memov's gitignore-style pattern matcher for
// ".memignore", layered with the always-ignored control directory and the
// host SCM directory.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName is the name of the project's ignore file, itself always includable.
const FileName = ".memignore"

// ControlDirName is memov's own control directory, always ignored.
const ControlDirName = ".mem"

// Matcher answers whether a project-relative path should be excluded from
// scanning/tracking.
type Matcher struct {
	gi *gitignore.GitIgnore
}

// Load reads "<projectRoot>/.memignore" (if present) and builds a Matcher.
// hostSCMDir (e.g. ".git") is always ignored in addition to whatever the
// file contains; an absent file yields a matcher with just the built-in
// always-ignored entries.
func Load(projectRoot, hostSCMDir string) (*Matcher, error) {
	var lines []string
	data, err := os.ReadFile(filepath.Join(projectRoot, FileName))
	if err == nil {
		lines = strings.Split(string(data), "\n")
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	lines = append(lines, ControlDirName+"/")
	if hostSCMDir != "" {
		lines = append(lines, hostSCMDir+"/")
	}
	return &Matcher{gi: gitignore.CompileIgnoreLines(lines...)}, nil
}

// Matches reports whether relPath (project-relative, forward-slashed) should
// be excluded. ".memignore" itself is never matched, regardless of patterns,
// so that a catch-all pattern like ".*" cannot hide it.
func (m *Matcher) Matches(relPath string) bool {
	clean := filepath.ToSlash(relPath)
	if clean == FileName {
		return false
	}
	if m == nil || m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(clean)
}
