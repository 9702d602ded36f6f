// Package history implements read-only views over the object store: the
// linear, operation-tagged log, single-commit inspection, workspace
// restoration ("jump"), and the status diff view.
package history

import (
	"errors"
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
	"github.com/memovai/contextgit/internal/scanner"
	"github.com/memovai/contextgit/internal/snapshot"
)

var log = logrus.WithField("pkg", "history")

// Row is one decorated history entry.
type Row struct {
	CommitID  string
	Branch    string // non-empty if this commit is currently a branch tip
	Operation string
	Prompt    string
	Response  string
}

// Message is the parsed form of a commit's line-oriented body.
type Message struct {
	Verb     string
	Files    []string
	Prompt   string
	Response string
	Source   string
}

// parseMessage splits a commit message into its verb line and key-value lines.
func parseMessage(msg string) Message {
	lines := strings.Split(msg, "\n")
	m := Message{}
	if len(lines) > 0 {
		m.Verb = strings.TrimSpace(lines[0])
	}
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "Files: "):
			csv := strings.TrimPrefix(line, "Files: ")
			if csv != "" {
				m.Files = strings.Split(csv, ",")
			}
		case strings.HasPrefix(line, "Prompt: "):
			m.Prompt = strings.TrimPrefix(line, "Prompt: ")
		case strings.HasPrefix(line, "Response: "):
			m.Response = strings.TrimPrefix(line, "Response: ")
		case strings.HasPrefix(line, "Source: "):
			m.Source = strings.TrimPrefix(line, "Source: ")
		}
	}
	return m
}

// operationFromVerb derives the coarse operation tag from a commit's first
// message line by keyword match.
func operationFromVerb(verb string) string {
	lower := strings.ToLower(verb)
	switch {
	case strings.Contains(lower, "track"):
		return "track"
	case strings.Contains(lower, "snap"):
		return "snap"
	case strings.Contains(lower, "rename"):
		return "rename"
	case strings.Contains(lower, "remove"):
		return "remove"
	default:
		return "unknown"
	}
}

// resolveDisplay parses a commit's message and, if a note is attached, lets
// the note's Prompt:/Response: lines override the message body — the
// amend-without-rewrite contract.
func resolveDisplay(store *objectstore.Store, commit plumbing.Hash, msg string) (Message, error) {
	parsed := parseMessage(msg)
	note, err := store.GetNote(commit)
	if err != nil {
		return parsed, err
	}
	if note == "" {
		return parsed, nil
	}
	noteParsed := parseMessage("note\n\n" + note)
	if noteParsed.Prompt != "" {
		parsed.Prompt = noteParsed.Prompt
	}
	if noteParsed.Response != "" {
		parsed.Response = noteParsed.Response
	}
	return parsed, nil
}

type commitRef struct {
	hash   plumbing.Hash
	commit *object.Commit
}

// History walks the union of every branch tip, de-duplicated by commit id,
// and returns rows in topological order (parents before children).
func History(store *objectstore.Store, catalog *refcatalog.Catalog) ([]Row, error) {
	branches := catalog.Branches()
	tipToBranch := map[string]string{}
	for name, tip := range branches {
		if tip != "" {
			tipToBranch[tip] = name
		}
	}

	all := map[string]commitRef{}
	for _, tip := range branches {
		if tip == "" {
			continue
		}
		h := plumbing.NewHash(tip)
		for h != plumbing.ZeroHash {
			id := h.String()
			if _, seen := all[id]; seen {
				break
			}
			commit, err := store.GetCommit(h)
			if err != nil {
				return nil, err
			}
			all[id] = commitRef{hash: h, commit: commit}
			if len(commit.ParentHashes) == 0 {
				break
			}
			h = commit.ParentHashes[0]
		}
	}

	depths := map[string]int{}
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depths[id]; ok {
			return d
		}
		c := all[id]
		if len(c.commit.ParentHashes) == 0 {
			depths[id] = 0
			return 0
		}
		d := depthOf(c.commit.ParentHashes[0].String()) + 1
		depths[id] = d
		return d
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		depthOf(id)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if depths[ids[i]] != depths[ids[j]] {
			return depths[ids[i]] < depths[ids[j]]
		}
		return ids[i] < ids[j]
	})

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		ref := all[id]
		display, err := resolveDisplay(store, ref.hash, ref.commit.Message)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			CommitID:  id,
			Branch:    tipToBranch[id],
			Operation: operationFromVerb(display.Verb),
			Prompt:    display.Prompt,
			Response:  display.Response,
		})
	}
	return rows, nil
}

// ShowResult is a commit's parsed metadata plus the list of files tracked at it.
type ShowResult struct {
	CommitID string
	Message  Message
	Files    []string
}

func Show(store *objectstore.Store, commitID string) (*ShowResult, error) {
	h := plumbing.NewHash(commitID)
	commit, err := store.GetCommit(h)
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "show commit %s", commitID)
	}
	display, err := resolveDisplay(store, h, commit.Message)
	if err != nil {
		return nil, err
	}
	files, err := store.ListFilesAt(h)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return &ShowResult{CommitID: commitID, Message: display, Files: paths}, nil
}

// Jump restores the workspace to targetCommit's tree: every file ever
// tracked on any branch but absent from the target tree is removed, then
// the target's archive is extracted over the project root. The catalog is
// left detached (current = "") via the engine's DetachAt.
func Jump(engine *snapshot.Engine, targetCommitID string) error {
	store := engine.Store
	target := plumbing.NewHash(targetCommitID)
	if _, err := store.GetCommit(target); err != nil {
		return memerr.Wrap(memerr.Unknown, err, "jump target %s", targetCommitID)
	}

	everTracked := map[string]bool{}
	for _, tip := range engine.Catalog.Branches() {
		if tip == "" {
			continue
		}
		files, err := store.FileBlobMapAt(plumbing.NewHash(tip))
		if err != nil {
			return err
		}
		for p := range files {
			everTracked[p] = true
		}
	}

	targetFiles, err := store.FileBlobMapAt(target)
	if err != nil {
		return err
	}

	for p := range everTracked {
		if _, stillPresent := targetFiles[p]; stillPresent {
			continue
		}
		abs := filepath.Join(engine.ProjectRoot, p)
		if rmErr := os.Remove(abs); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.WithError(rmErr).WithField("path", p).Warn("failed to remove stale file during jump")
		}
	}

	data, err := store.Archive(target)
	if err != nil {
		return err
	}
	if err := objectstore.ExtractArchive(data, engine.ProjectRoot); err != nil {
		return err
	}

	oldHead, err := store.Head()
	if err != nil {
		return err
	}
	if err := engine.DetachAt(oldHead); err != nil {
		return err
	}
	return store.SetHead(target)
}

// Status computes the three-way diff between the workspace and HEAD, the
// same vocabulary the snapshot engine guards against accidentally capturing.
func Status(store *objectstore.Store, matcher *ignore.Matcher, projectRoot, controlDirName, hostSCMDir string) (*scanner.Diff, error) {
	head, err := store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}
	return scanner.Scan(projectRoot, headFiles, matcher, controlDirName, hostSCMDir)
}
