// Package scanner computes the three-way diff between a project's workspace
// and a commit's tracked set: untracked, deleted, and modified files.
package scanner

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/memovai/contextgit/internal/ignore"
	"github.com/memovai/contextgit/internal/memerr"
)

var log = logrus.WithField("pkg", "scanner")

// Diff holds the three disjoint sets of project-relative paths.
type Diff struct {
	Untracked []string
	Deleted   []string
	Modified  []string
}

// HashFile hashes absPath's current bytes exactly the way the object store
// would hash them on write, so identity comparison needs no actual write.
func HashFile(absPath string) (plumbing.Hash, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.Unknown, err, "read %s", absPath)
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data), nil
}

// Scan walks projectRoot (skipping controlDirName and hostSCMDir) and
// compares the workspace's current blob identities against headFiles (the
// tracked set at HEAD, as returned by objectstore.FileBlobMapAt).
func Scan(projectRoot string, headFiles map[string]plumbing.Hash, matcher *ignore.Matcher, controlDirName, hostSCMDir string) (*Diff, error) {
	workspace, err := walk(projectRoot, matcher, controlDirName, hostSCMDir)
	if err != nil {
		return nil, err
	}

	diff := &Diff{}
	for p, h := range workspace {
		headHash, tracked := headFiles[p]
		if !tracked {
			diff.Untracked = append(diff.Untracked, p)
			continue
		}
		if headHash != h {
			diff.Modified = append(diff.Modified, p)
		}
	}
	for p := range headFiles {
		if _, present := workspace[p]; !present {
			diff.Deleted = append(diff.Deleted, p)
		}
	}

	sort.Strings(diff.Untracked)
	sort.Strings(diff.Deleted)
	sort.Strings(diff.Modified)
	log.WithFields(logrus.Fields{
		"untracked": len(diff.Untracked),
		"deleted":   len(diff.Deleted),
		"modified":  len(diff.Modified),
	}).Debug("scanned workspace")
	return diff, nil
}

// WorkspaceBlobs returns the hash of every non-ignored file under
// projectRoot, keyed by project-relative path.
func WorkspaceBlobs(projectRoot string, matcher *ignore.Matcher, controlDirName, hostSCMDir string) (map[string]plumbing.Hash, error) {
	return walk(projectRoot, matcher, controlDirName, hostSCMDir)
}

func walk(projectRoot string, matcher *ignore.Matcher, controlDirName, hostSCMDir string) (map[string]plumbing.Hash, error) {
	out := map[string]plumbing.Hash{}
	err := filepath.Walk(projectRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(projectRoot, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			base := filepath.Base(p)
			if base == controlDirName || (hostSCMDir != "" && base == hostSCMDir) {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.Matches(rel) {
			return nil
		}

		hash, hashErr := HashFile(p)
		if hashErr != nil {
			return hashErr
		}
		out[rel] = hash
		return nil
	})
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "walk workspace %s", projectRoot)
	}
	return out, nil
}

// HasUntracked reports whether relPath is present in a Diff's untracked list.
func (d *Diff) HasUntracked(relPath string) bool {
	for _, p := range d.Untracked {
		if p == relPath {
			return true
		}
	}
	return false
}

