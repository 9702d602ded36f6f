// Package recorder implements the Interaction Recorder: the orchestration
// layer that turns one AI interaction (prompt, response, plan, files
// touched) into the right sequence of object-store commits, bootstrapping
// the project on first use and never letting a concurrent manual edit slip
// into an AI-attributed commit.
package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"github.com/memovai/contextgit/internal/chunker"
	"github.com/memovai/contextgit/internal/config"
	"github.com/memovai/contextgit/internal/embedding"
	"github.com/memovai/contextgit/internal/ignore"
	"github.com/memovai/contextgit/internal/memerr"
	"github.com/memovai/contextgit/internal/objectstore"
	"github.com/memovai/contextgit/internal/pending"
	"github.com/memovai/contextgit/internal/refcatalog"
	"github.com/memovai/contextgit/internal/scanner"
	"github.com/memovai/contextgit/internal/snapshot"
	"github.com/memovai/contextgit/internal/vectorstore"
)

var log = logrus.WithField("pkg", "recorder")

const objectStoreDirName = "memov.git"
const vectorDBFileName = "vectordb.db"
const hostSCMDir = ".git"

// bootstrapIgnore is the content written to a freshly-created .memignore.
const bootstrapIgnore = "*.log\n*.tmp\n__pycache__/\n.DS_Store\n"

// Recorder wires together the object store, ref catalog, ignore matcher,
// snapshot engine, vector store, and pending queue for one project. A
// Recorder may be constructed against a project that has not yet been
// initialized; the store attaches lazily on the first Record call.
type Recorder struct {
	ProjectRoot string
	ControlDir  string

	cfg     *config.Config
	matcher *ignore.Matcher

	store   *objectstore.Store
	catalog *refcatalog.Catalog
	engine  *snapshot.Engine
	vstore  *vectorstore.Store
	queue   *pending.Queue
}

// New validates projectRoot and loads whatever configuration and ignore
// rules already exist, attaching to an already-initialized store if one is
// present. It does not create anything.
func New(projectRoot string) (*Recorder, error) {
	info, err := os.Stat(projectRoot)
	if err != nil || !info.IsDir() {
		return nil, memerr.New(memerr.ProjectNotFound, "project path %s not found", projectRoot)
	}
	controlDir := filepath.Join(projectRoot, ".mem")

	cfg, err := config.Load(controlDir)
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "load config")
	}
	matcher, err := ignore.Load(projectRoot, hostSCMDir)
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "load ignore rules")
	}

	r := &Recorder{ProjectRoot: projectRoot, ControlDir: controlDir, cfg: cfg, matcher: matcher}
	if objectstore.Exists(filepath.Join(controlDir, objectStoreDirName)) {
		store, err := objectstore.Open(filepath.Join(controlDir, objectStoreDirName))
		if err != nil {
			return nil, err
		}
		catalog, err := refcatalog.Load(controlDir)
		if err != nil {
			return nil, err
		}
		if err := r.wire(store, catalog); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Initialized reports whether the object store has been attached (either
// because it already existed, or because Record bootstrapped it).
func (r *Recorder) Initialized() bool { return r.store != nil }

// Close releases the vector store's file handle. Safe to call on an
// uninitialized Recorder.
func (r *Recorder) Close() error {
	if r.vstore == nil {
		return nil
	}
	return r.vstore.Close()
}

// wire builds the snapshot engine, vector store, and pending queue from an
// already-open object store and ref catalog.
func (r *Recorder) wire(store *objectstore.Store, catalog *refcatalog.Catalog) error {
	r.store = store
	r.catalog = catalog
	r.engine = &snapshot.Engine{
		ProjectRoot:    r.ProjectRoot,
		ControlDirName: ignore.ControlDirName,
		HostSCMDir:     hostSCMDir,
		BranchPrefix:   r.cfg.BranchPrefix,
		Author: object.Signature{
			Name:  r.cfg.Author.Name,
			Email: r.cfg.Author.Email,
			When:  objectstore.Now(),
		},
		Store:   store,
		Catalog: catalog,
		Matcher: r.matcher,
	}

	vectorDBDir := filepath.Join(r.ControlDir, "vectordb")
	if err := os.MkdirAll(vectorDBDir, 0o755); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "create vectordb directory")
	}
	backend, err := embedding.New(r.cfg.Embedding.Backend)
	if err != nil {
		return err
	}
	chunk := chunker.New(r.cfg.Chunking.Size, r.cfg.Chunking.Overlap)
	vstore, err := vectorstore.Open(filepath.Join(vectorDBDir, vectorDBFileName), chunk, backend)
	if err != nil {
		return err
	}
	r.vstore = vstore
	r.queue = pending.New()
	return nil
}

// bootstrap initializes a fresh ".mem" control directory: the bare object
// store, an empty ref catalog, and an initial ".memignore" that is itself
// immediately tracked so the very first commit already has content.
func (r *Recorder) bootstrap() error {
	if r.Initialized() {
		return nil
	}
	if err := os.MkdirAll(r.ControlDir, 0o755); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "create control directory")
	}
	store, err := objectstore.Init(filepath.Join(r.ControlDir, objectStoreDirName))
	if err != nil {
		return err
	}
	catalog, err := refcatalog.Load(r.ControlDir)
	if err != nil {
		return err
	}
	if err := r.wire(store, catalog); err != nil {
		return err
	}

	ignorePath := filepath.Join(r.ProjectRoot, ignore.FileName)
	if _, statErr := os.Stat(ignorePath); os.IsNotExist(statErr) {
		if err := os.WriteFile(ignorePath, []byte(bootstrapIgnore), 0o644); err != nil {
			return memerr.Wrap(memerr.CommitFailed, err, "write initial .memignore")
		}
		matcher, err := ignore.Load(r.ProjectRoot, hostSCMDir)
		if err != nil {
			return err
		}
		r.matcher = matcher
		r.engine.Matcher = matcher
	}

	result, err := r.engine.Track([]string{ignore.FileName}, "", "bootstrap", true)
	if err != nil {
		return err
	}
	r.enqueue(result, "", "bootstrap", "", true)
	log.WithField("project", r.ProjectRoot).Info("bootstrapped project")
	return nil
}

// Result is everything Record produced: zero to three commits, one per
// split it needed to make.
type Result struct {
	NoOp     bool
	Manual   *snapshot.Result
	Track    *snapshot.Result
	Snapshot *snapshot.Result
}

// Record runs the recorder's core pipeline for one interaction:
//  1. validate the project still exists
//  2. no-op if the caller reports no files changed (nothing is bootstrapped
//     and no commit is made)
//  3. bootstrap the store if this is the first call that changes files
//  4. diff the workspace against HEAD
//  5. split the modified set into manual edits (not claimed by the AI) and
//     AI edits, committing any manual edits first under the user's identity
//  6. track newly-created AI files
//  7. snapshot modified AI files
//  8. enqueue one pending-write entry per commit produced, for the caller to
//     drain into the vector store
func (r *Recorder) Record(userPrompt, agentResponse, agentPlan string, filesChanged []string) (*Result, error) {
	if info, err := os.Stat(r.ProjectRoot); err != nil || !info.IsDir() {
		return nil, memerr.New(memerr.ProjectNotFound, "project path %s not found", r.ProjectRoot)
	}

	if len(filesChanged) == 0 {
		return &Result{NoOp: true}, nil
	}

	if !r.Initialized() {
		if err := r.bootstrap(); err != nil {
			return nil, err
		}
	}

	aiSet := map[string]bool{}
	for _, p := range filesChanged {
		aiSet[filepath.ToSlash(filepath.Clean(p))] = true
	}

	head, err := r.store.Head()
	if err != nil {
		return nil, err
	}
	headFiles, err := r.store.FileBlobMapAt(head)
	if err != nil {
		return nil, err
	}
	diff, err := r.scan(headFiles)
	if err != nil {
		return nil, err
	}

	res := &Result{}

	var manualModified []string
	for _, p := range diff.Modified {
		if !aiSet[p] {
			manualModified = append(manualModified, p)
		}
	}
	if len(manualModified) > 0 {
		manualPrompt := "Manual edits detected before AI operation"
		manualResponse := describeFiles(manualModified)
		manual, err := r.engine.SnapshotPartial("Create snapshot", manualModified, manualPrompt, manualResponse, "", true)
		if err != nil {
			return nil, err
		}
		res.Manual = manual
		r.enqueue(manual, manualPrompt, manualResponse, "", true)
	}

	var untrackedAI []string
	for _, p := range diff.Untracked {
		if aiSet[p] {
			untrackedAI = append(untrackedAI, p)
		}
	}
	if len(untrackedAI) > 0 {
		track, err := r.engine.Track(untrackedAI, userPrompt, agentResponse, false)
		if err != nil {
			return nil, err
		}
		res.Track = track
		r.enqueue(track, userPrompt, agentResponse, agentPlan, false)
	}

	var modifiedAI []string
	for _, p := range diff.Modified {
		if aiSet[p] {
			modifiedAI = append(modifiedAI, p)
		}
	}
	if len(modifiedAI) > 0 {
		snap, err := r.engine.SnapshotPartial("Create snapshot", modifiedAI, userPrompt, agentResponse, agentPlan, false)
		if err != nil {
			return nil, err
		}
		res.Snapshot = snap
		r.enqueue(snap, userPrompt, agentResponse, agentPlan, false)
	}

	return res, nil
}

// EnsureInitialized bootstraps the store if this project has never been
// recorded against before. CLI entry points that operate outside the
// Record pipeline (track, snap) call this before touching the engine.
func (r *Recorder) EnsureInitialized() error {
	if r.Initialized() {
		return nil
	}
	return r.bootstrap()
}

// Track explicitly tracks paths under the given identity, bypassing the
// AI/manual split Record performs — this is the CLI's direct `track` verb.
func (r *Recorder) Track(paths []string, prompt, response string, byUser bool) (*snapshot.Result, error) {
	if err := r.EnsureInitialized(); err != nil {
		return nil, err
	}
	result, err := r.engine.Track(paths, prompt, response, byUser)
	if err != nil {
		return nil, err
	}
	r.enqueue(result, prompt, response, "", byUser)
	return result, nil
}

// Snap takes a snapshot under the given identity — the CLI's direct `snap`
// verb, with no AI/manual partitioning. An empty files list snapshots the
// whole workspace; a non-empty one restricts the rehash to those paths.
func (r *Recorder) Snap(files []string, prompt, response string, byUser bool) (*snapshot.Result, error) {
	if err := r.EnsureInitialized(); err != nil {
		return nil, err
	}
	var result *snapshot.Result
	var err error
	if len(files) == 0 {
		result, err = r.engine.Snapshot("Create snapshot", prompt, response, "", byUser)
	} else {
		result, err = r.engine.SnapshotPartial("Create snapshot", files, prompt, response, "", byUser)
	}
	if err != nil {
		return nil, err
	}
	r.enqueue(result, prompt, response, "", byUser)
	return result, nil
}

// Rename commits any concurrent manual edits to other tracked files first
// (excluding oldPath itself — it is about to move, so any edit sitting in
// its bytes rides along with the move instead of getting its own commit),
// then moves the file on disk and runs the engine's all-files rehash so
// both the move and oldPath's own concurrent edits land in the same
// rename commit, under the new name.
func (r *Recorder) Rename(oldPath, newPath, prompt, response string, byUser bool) (*snapshot.Result, error) {
	if !r.Initialized() {
		return nil, memerr.New(memerr.StoreNotInitialized, "project %s has no object store", r.ProjectRoot)
	}
	if err := r.commitConcurrentManualEdits(oldPath, "Manual edits detected before rename"); err != nil {
		return nil, err
	}

	oldAbs := filepath.Join(r.ProjectRoot, oldPath)
	newAbs := filepath.Join(r.ProjectRoot, newPath)
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return nil, memerr.Wrap(memerr.CommitFailed, err, "create destination directory for rename")
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return nil, memerr.Wrap(memerr.CommitFailed, err, "rename %s to %s", oldPath, newPath)
	}

	result, err := r.engine.Rename(oldPath, newPath, prompt, response, byUser)
	if err != nil {
		return nil, err
	}
	r.enqueue(result, prompt, response, "", byUser)
	return result, nil
}

// Remove commits any concurrent manual edits first, then deletes the file
// on disk and takes an all-files snapshot so the removal is reflected in
// the new tree.
func (r *Recorder) Remove(path, prompt, response string, byUser bool) (*snapshot.Result, error) {
	if !r.Initialized() {
		return nil, memerr.New(memerr.StoreNotInitialized, "project %s has no object store", r.ProjectRoot)
	}
	if err := r.commitConcurrentManualEdits(path, "Manual edits detected before remove"); err != nil {
		return nil, err
	}

	abs := filepath.Join(r.ProjectRoot, path)
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return nil, memerr.Wrap(memerr.CommitFailed, err, "remove %s", path)
	}

	result, err := r.engine.Remove(path, prompt, response, byUser)
	if err != nil {
		return nil, err
	}
	r.enqueue(result, prompt, response, "", byUser)
	return result, nil
}

// commitConcurrentManualEdits issues a SnapshotPartial over every modified
// file except excludePath, so a rename/remove never silently folds in an
// unrelated manual edit.
func (r *Recorder) commitConcurrentManualEdits(excludePath, prompt string) error {
	head, err := r.store.Head()
	if err != nil {
		return err
	}
	headFiles, err := r.store.FileBlobMapAt(head)
	if err != nil {
		return err
	}
	diff, err := r.scan(headFiles)
	if err != nil {
		return err
	}

	var manual []string
	for _, p := range diff.Modified {
		if p != excludePath {
			manual = append(manual, p)
		}
	}
	if len(manual) == 0 {
		return nil
	}
	response := describeFiles(manual)
	result, err := r.engine.SnapshotPartial("Create snapshot", manual, prompt, response, "", true)
	if err != nil {
		return err
	}
	r.enqueue(result, prompt, response, "", true)
	return nil
}

// Amend attaches a note to an already-written commit, overriding its
// displayed prompt/response without rewriting history.
func (r *Recorder) Amend(commit *snapshot.Result, prompt, response string) error {
	return r.AmendCommit(commit.CommitID.String(), prompt, response)
}

// AmendCommit is Amend for callers (the CLI) that only have a commit id
// string rather than a freshly-produced snapshot.Result.
func (r *Recorder) AmendCommit(commitID, prompt, response string) error {
	text := "Prompt: " + strings.ReplaceAll(prompt, "\n", " ") + "\nResponse: " + strings.ReplaceAll(response, "\n", " ") + "\n"
	return r.store.SetNote(plumbing.NewHash(commitID), text)
}

// Drain flushes the pending-writes queue into the vector store.
func (r *Recorder) Drain() (successful, failed int) {
	return r.queue.Drain(r.vstore)
}

// VectorStore exposes the recorder's vector store for search operations.
func (r *Recorder) VectorStore() *vectorstore.Store { return r.vstore }

// Store exposes the recorder's object store for history/show/jump callers.
func (r *Recorder) Store() *objectstore.Store { return r.store }

// Catalog exposes the recorder's ref catalog for history/show/jump callers.
func (r *Recorder) Catalog() *refcatalog.Catalog { return r.catalog }

// Engine exposes the recorder's snapshot engine for jump/rename callers that
// need direct access (e.g. internal/history's Jump).
func (r *Recorder) Engine() *snapshot.Engine { return r.engine }

func (r *Recorder) enqueue(result *snapshot.Result, prompt, response, plan string, byUser bool) {
	entry := pending.Entry{
		OperationType: result.OperationType,
		CommitHash:    result.CommitID.String(),
		ParentHash:    result.ParentID.String(),
		Prompt:        prompt,
		Response:      response,
		AgentPlan:     plan,
		ByUser:        byUser,
		Files:         result.Files,
		Timestamp:     time.Now(),
	}
	r.queue.Enqueue(entry)
}

func (r *Recorder) scan(headFiles map[string]plumbing.Hash) (*scanner.Diff, error) {
	return scanner.Scan(r.ProjectRoot, headFiles, r.matcher, ignore.ControlDirName, hostSCMDir)
}

func describeFiles(files []string) string {
	return "Workspace edits outside the current operation: " + strings.Join(files, ", ")
}
