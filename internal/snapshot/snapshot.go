// Package snapshot implements the Snapshot Engine: the three operations
// (track, snapshot-all, partial-snapshot) that compose trees from mixed
// sources — some entries freshly hashed from the workspace, others
// inherited verbatim from HEAD — and advance the ref catalog atomically
// from the caller's point of view.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"github.com/memovai/contextgit/internal/ignore"
	"github.com/memovai/contextgit/internal/memerr"
	"github.com/memovai/contextgit/internal/objectstore"
	"github.com/memovai/contextgit/internal/refcatalog"
)

var log = logrus.WithField("pkg", "snapshot")

// Result describes the commit an operation produced.
type Result struct {
	CommitID      plumbing.Hash
	ParentID      plumbing.Hash
	Files         []string
	OperationType string
}

// Engine ties the object store, ref catalog, and ignore matcher together
// for one project. It carries the project path explicitly rather than
// relying on any package- or class-level mutable state.
type Engine struct {
	ProjectRoot    string
	ControlDirName string
	HostSCMDir     string
	BranchPrefix   string
	Author         object.Signature

	Store   *objectstore.Store
	Catalog *refcatalog.Catalog
	Matcher *ignore.Matcher
}

// buildMessage renders the line-oriented commit message format:
//
//	<Verb>
//
//	Files: <comma-separated relative paths>
//	Prompt: <user prompt, single line>
//	Response: <agent response, single line>
//	Source: User|AI
func buildMessage(verb string, files []string, prompt, response string, byUser bool) string {
	source := "AI"
	if byUser {
		source = "User"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", verb)
	fmt.Fprintf(&b, "Files: %s\n", strings.Join(files, ","))
	fmt.Fprintf(&b, "Prompt: %s\n", collapseNewlines(prompt))
	fmt.Fprintf(&b, "Response: %s\n", collapseNewlines(response))
	fmt.Fprintf(&b, "Source: %s\n", source)
	return b.String()
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// expandPaths turns caller-supplied project-relative paths into a flat,
// deduplicated list of file paths, recursively expanding any directory
// argument.
func (e *Engine) expandPaths(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		p = filepath.ToSlash(filepath.Clean(p))
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		rel := filepath.ToSlash(filepath.Clean(p))
		abs := filepath.Join(e.ProjectRoot, rel)
		info, err := os.Stat(abs)
		if err != nil {
			// A path that no longer exists in the workspace simply
			// contributes nothing to track (it cannot be promoted).
			continue
		}
		if !info.IsDir() {
			add(rel)
			continue
		}
		err = filepath.Walk(abs, func(sub string, subInfo os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if subInfo.IsDir() {
				return nil
			}
			subRel, relErr := filepath.Rel(e.ProjectRoot, sub)
			if relErr != nil {
				return relErr
			}
			add(subRel)
			return nil
		})
		if err != nil {
			return nil, memerr.Wrap(memerr.Unknown, err, "expand directory %s", p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// advance moves HEAD and the current branch tip to commitID, running the
// branch-advance algorithm and repair pass on every write path.
func (e *Engine) advance(commitID plumbing.Hash) error {
	head, err := e.Store.Head()
	if err != nil {
		return err
	}
	headStr := ""
	if head != plumbing.ZeroHash {
		headStr = head.String()
	}
	e.Catalog.ValidateAndRepair(headStr)
	e.Catalog.Advance(commitID.String(), headStr, e.BranchPrefix, false)
	if cur := e.Catalog.Current(); cur != "" {
		if err := e.Store.UpdateRef(cur, commitID); err != nil {
			return err
		}
	}
	if err := e.Store.SetHead(commitID); err != nil {
		return err
	}
	return e.Catalog.Save()
}

// parentsOf returns the parent list for a new commit given the current HEAD.
func parentsOf(head plumbing.Hash) []plumbing.Hash {
	if head == plumbing.ZeroHash {
		return nil
	}
	return []plumbing.Hash{head}
}

// Track promotes newly-discovered files into the tracked set without
// touching the blob id of any file already tracked at HEAD — the key
// property that prevents track from accidentally recording concurrent
// manual edits.
func (e *Engine) Track(paths []string, prompt, response string, byUser bool) (*Result, error) {
	head, err := e.Store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := e.Store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}

	expanded, err := e.expandPaths(paths)
	if err != nil {
		return nil, err
	}

	var surviving []string
	for _, p := range expanded {
		if _, tracked := headFiles[p]; tracked {
			continue
		}
		if e.Matcher.Matches(p) {
			continue
		}
		surviving = append(surviving, p)
	}

	treeFiles := make(map[string]plumbing.Hash, len(headFiles)+len(surviving))
	for p, h := range headFiles {
		treeFiles[p] = h
	}
	for _, p := range surviving {
		abs := filepath.Join(e.ProjectRoot, p)
		blobID, err := e.Store.WriteBlobFile(abs)
		if err != nil {
			return nil, err
		}
		treeFiles[p] = blobID
	}

	treeID, err := e.Store.BuildTree(treeFiles)
	if err != nil {
		return nil, err
	}
	msg := buildMessage("Track", surviving, prompt, response, byUser)
	commitID, err := e.Store.WriteCommit(treeID, parentsOf(head), e.Author, msg)
	if err != nil {
		return nil, err
	}
	if err := e.advance(commitID); err != nil {
		return nil, err
	}
	log.WithField("commit", commitID.String()).WithField("files", len(surviving)).Info("track")
	return &Result{CommitID: commitID, ParentID: head, Files: surviving, OperationType: "track"}, nil
}

// Snapshot is the all-files form: every file tracked at HEAD that is still
// present in the workspace gets a fresh blob; files removed from the
// workspace (e.g. by a prior rename/remove) drop out of the new tree.
// Untracked workspace files are not picked up.
func (e *Engine) Snapshot(verb, prompt, response, plan string, byUser bool) (*Result, error) {
	head, err := e.Store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := e.Store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}

	treeFiles := make(map[string]plumbing.Hash, len(headFiles))
	var changed []string
	for p, headHash := range headFiles {
		abs := filepath.Join(e.ProjectRoot, p)
		if _, statErr := os.Stat(abs); statErr != nil {
			continue
		}
		blobID, err := e.Store.WriteBlobFile(abs)
		if err != nil {
			return nil, err
		}
		treeFiles[p] = blobID
		if blobID != headHash {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)

	treeID, err := e.Store.BuildTree(treeFiles)
	if err != nil {
		return nil, err
	}
	if verb == "" {
		verb = "Create snapshot"
	}
	msg := buildMessage(verb, changed, prompt, response, byUser)
	commitID, err := e.Store.WriteCommit(treeID, parentsOf(head), e.Author, msg)
	if err != nil {
		return nil, err
	}
	if err := e.advance(commitID); err != nil {
		return nil, err
	}
	log.WithField("commit", commitID.String()).WithField("files", len(changed)).Info("snapshot-all")
	return &Result{CommitID: commitID, ParentID: head, Files: changed, OperationType: "snapshot"}, nil
}

// SnapshotPartial inherits every tracked file's HEAD blob id except those
// named in filePaths, which are rehashed from the workspace. A named path
// missing from the workspace falls back silently to its HEAD blob, logging
// a warning rather than failing the operation.
func (e *Engine) SnapshotPartial(verb string, filePaths []string, prompt, response, plan string, byUser bool) (*Result, error) {
	head, err := e.Store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := e.Store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}

	accepted := map[string]bool{}
	for _, raw := range filePaths {
		p := filepath.ToSlash(filepath.Clean(raw))
		if _, tracked := headFiles[p]; !tracked {
			log.WithField("path", p).Warn("file-not-tracked: skipping in partial snapshot")
			continue
		}
		accepted[p] = true
	}

	treeFiles := make(map[string]plumbing.Hash, len(headFiles))
	var changed []string
	for p, headHash := range headFiles {
		if !accepted[p] {
			treeFiles[p] = headHash
			continue
		}
		abs := filepath.Join(e.ProjectRoot, p)
		if _, statErr := os.Stat(abs); statErr != nil {
			log.WithField("path", p).Warn("partial snapshot target missing from workspace, falling back to HEAD blob")
			treeFiles[p] = headHash
			continue
		}
		blobID, err := e.Store.WriteBlobFile(abs)
		if err != nil {
			return nil, err
		}
		treeFiles[p] = blobID
		if blobID != headHash {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)

	treeID, err := e.Store.BuildTree(treeFiles)
	if err != nil {
		return nil, err
	}
	if verb == "" {
		verb = "Create snapshot"
	}
	msg := buildMessage(verb, changed, prompt, response, byUser)
	commitID, err := e.Store.WriteCommit(treeID, parentsOf(head), e.Author, msg)
	if err != nil {
		return nil, err
	}
	if err := e.advance(commitID); err != nil {
		return nil, err
	}
	log.WithField("commit", commitID.String()).WithField("files", len(changed)).Info("partial-snapshot")
	return &Result{CommitID: commitID, ParentID: head, Files: changed, OperationType: "snapshot"}, nil
}

// Rename moves oldPath to newPath within the tracked set. The caller
// performs the workspace move (or any other concurrent edits) first; Rename
// then runs the same all-files rehash Snapshot does — every tracked path
// still present on disk gets a fresh blob, with oldPath's old tracked entry
// read back under newPath — so a manual edit sitting in the moved file's
// bytes is captured under its new name rather than silently dropped in
// favor of oldPath's stale HEAD blob. oldPath must already be tracked at
// HEAD.
func (e *Engine) Rename(oldPath, newPath, prompt, response string, byUser bool) (*Result, error) {
	head, err := e.Store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := e.Store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}
	oldPath = filepath.ToSlash(filepath.Clean(oldPath))
	newPath = filepath.ToSlash(filepath.Clean(newPath))
	if _, tracked := headFiles[oldPath]; !tracked {
		return nil, memerr.New(memerr.FileNotTracked, "cannot rename untracked path %s", oldPath)
	}

	treeFiles := make(map[string]plumbing.Hash, len(headFiles))
	for p := range headFiles {
		target := p
		if p == oldPath {
			target = newPath
		}
		abs := filepath.Join(e.ProjectRoot, target)
		if _, statErr := os.Stat(abs); statErr != nil {
			continue
		}
		blobID, err := e.Store.WriteBlobFile(abs)
		if err != nil {
			return nil, err
		}
		treeFiles[target] = blobID
	}

	treeID, err := e.Store.BuildTree(treeFiles)
	if err != nil {
		return nil, err
	}
	msg := buildMessage("Rename", []string{oldPath, newPath}, prompt, response, byUser)
	commitID, err := e.Store.WriteCommit(treeID, parentsOf(head), e.Author, msg)
	if err != nil {
		return nil, err
	}
	if err := e.advance(commitID); err != nil {
		return nil, err
	}
	log.WithField("commit", commitID.String()).WithFields(logrus.Fields{"from": oldPath, "to": newPath}).Info("rename")
	return &Result{CommitID: commitID, ParentID: head, Files: []string{oldPath, newPath}, OperationType: "rename"}, nil
}

// Remove drops path from the tracked set. The caller deletes path from the
// workspace first; Remove then runs the same all-files rehash Snapshot does
// over every other tracked path still present on disk, so a concurrent
// manual edit to a surviving file is captured rather than silently
// inherited from its stale HEAD blob.
func (e *Engine) Remove(path, prompt, response string, byUser bool) (*Result, error) {
	head, err := e.Store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := e.Store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}
	path = filepath.ToSlash(filepath.Clean(path))
	if _, tracked := headFiles[path]; !tracked {
		return nil, memerr.New(memerr.FileNotTracked, "cannot remove untracked path %s", path)
	}

	treeFiles := make(map[string]plumbing.Hash, len(headFiles))
	for p := range headFiles {
		if p == path {
			continue
		}
		abs := filepath.Join(e.ProjectRoot, p)
		if _, statErr := os.Stat(abs); statErr != nil {
			continue
		}
		blobID, err := e.Store.WriteBlobFile(abs)
		if err != nil {
			return nil, err
		}
		treeFiles[p] = blobID
	}

	treeID, err := e.Store.BuildTree(treeFiles)
	if err != nil {
		return nil, err
	}
	msg := buildMessage("Remove", []string{path}, prompt, response, byUser)
	commitID, err := e.Store.WriteCommit(treeID, parentsOf(head), e.Author, msg)
	if err != nil {
		return nil, err
	}
	if err := e.advance(commitID); err != nil {
		return nil, err
	}
	log.WithField("commit", commitID.String()).WithField("path", path).Info("remove")
	return &Result{CommitID: commitID, ParentID: head, Files: []string{path}, OperationType: "remove"}, nil
}

// DetachAt resets the catalog to a detached state, recording the old HEAD tip
// into the branch being left before the caller moves HEAD itself.
func (e *Engine) DetachAt(oldHead plumbing.Hash) error {
	headStr := ""
	if oldHead != plumbing.ZeroHash {
		headStr = oldHead.String()
	}
	e.Catalog.Advance("", headStr, e.BranchPrefix, true)
	return e.Catalog.Save()
}
