// Package refcatalog implements the small JSON-backed document that tracks
// memov's named branches, the current branch pointer, and the branch-advance
// algorithm that decides which branch (if any) absorbs a newly-landed commit.
package refcatalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/memovai/contextgit/internal/memerr"
)

var log = logrus.WithField("pkg", "refcatalog")

// FileName is the catalog's file name inside the control directory.
const FileName = "branches.json"

// Catalog is the ref catalog document: a current-branch pointer plus the
// branch-name -> commit-id map. Commit ids are hex strings so the document
// round-trips through JSON without a custom codec.
type Catalog struct {
	CurrentName string            `json:"current"`
	BranchTips  map[string]string `json:"branches"`

	path string
}

// Load reads the catalog from "<controlDir>/branches.json", returning an
// empty (uninitialized) catalog if the file does not yet exist.
func Load(controlDir string) (*Catalog, error) {
	path := filepath.Join(controlDir, FileName)
	c := &Catalog{BranchTips: map[string]string{}, path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "read ref catalog")
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "parse ref catalog")
	}
	c.path = path
	if c.BranchTips == nil {
		c.BranchTips = map[string]string{}
	}
	return c, nil
}

// Save persists the catalog to disk, overwriting the whole document.
func (c *Catalog) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return memerr.Wrap(memerr.Unknown, err, "marshal ref catalog")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "create control directory")
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "write ref catalog")
	}
	return nil
}

// Current returns the name of the current branch, or "" if detached.
func (c *Catalog) Current() string { return c.CurrentName }

// Branches returns a copy of the branch-tip map.
func (c *Catalog) Branches() map[string]string {
	out := make(map[string]string, len(c.BranchTips))
	for k, v := range c.BranchTips {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether no branch has ever been recorded.
func (c *Catalog) IsEmpty() bool { return len(c.BranchTips) == 0 }

// ValidateAndRepair enforces the catalog's invariants:
//   - if any branch tip is empty and head is non-empty, that branch adopts head
//   - if current names a non-existent branch, current resets to "main", or
//     to "" (detached) when there is no "main" branch
//
// It is idempotent and safe to call on every write path.
func (c *Catalog) ValidateAndRepair(head string) {
	if head != "" {
		for name, tip := range c.BranchTips {
			if tip == "" {
				c.BranchTips[name] = head
				log.WithFields(logrus.Fields{"branch": name, "head": head}).Warn("repaired empty branch tip")
			}
		}
	}
	if c.CurrentName != "" {
		if _, ok := c.BranchTips[c.CurrentName]; !ok {
			log.WithField("current", c.CurrentName).Warn("current branch missing, resetting to main")
			if _, ok := c.BranchTips["main"]; ok {
				c.CurrentName = "main"
			} else {
				c.CurrentName = ""
			}
		}
	}
}

// Advance runs the branch-advance algorithm for a commit C that just landed,
// given the HEAD value before this commit (headBefore) and whether the
// caller is in a detached-reset scenario (e.g. right after a jump).
// branchPrefix names the auto-allocation prefix (e.g. "develop/") used when
// no existing branch claims the commit.
//
// Advance mutates the catalog in place; it does not move the object store's
// HEAD ref — callers update that separately.
func (c *Catalog) Advance(newCommit, headBefore, branchPrefix string, detachReset bool) {
	if c.IsEmpty() {
		c.BranchTips = map[string]string{"main": newCommit}
		c.CurrentName = "main"
		return
	}

	if detachReset {
		if c.CurrentName != "" {
			c.BranchTips[c.CurrentName] = headBefore
		}
		c.CurrentName = ""
		return
	}

	if c.CurrentName != "" {
		if _, ok := c.BranchTips[c.CurrentName]; ok {
			c.BranchTips[c.CurrentName] = newCommit
			return
		}
	}

	if headBefore != "" {
		names := sortedNames(c.BranchTips)
		for _, name := range names {
			if c.BranchTips[name] == headBefore {
				c.BranchTips[name] = newCommit
				c.CurrentName = name
				return
			}
		}
	}

	if tip, ok := c.BranchTips["main"]; ok && tip == "" {
		c.BranchTips["main"] = newCommit
		c.CurrentName = "main"
		return
	}

	name := c.nextDevelopBranch(branchPrefix)
	c.BranchTips[name] = newCommit
	c.CurrentName = name
}

func (c *Catalog) nextDevelopBranch(prefix string) string {
	if prefix == "" {
		prefix = "develop/"
	}
	for n := 0; ; n++ {
		candidate := fmt.Sprintf("%s%d", prefix, n)
		if _, exists := c.BranchTips[candidate]; !exists {
			return candidate
		}
	}
}

func sortedNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Select switches the current branch, failing if name is unknown.
func (c *Catalog) Select(name string) error {
	if _, ok := c.BranchTips[name]; !ok {
		return memerr.New(memerr.Unknown, "no such branch %q", name)
	}
	c.CurrentName = name
	return nil
}

// Set assigns a branch tip directly, creating the branch if absent.
func (c *Catalog) Set(name, commitID string) {
	c.BranchTips[name] = commitID
}
