package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/memovai/contextgit/internal/ignore"
	"github.com/memovai/contextgit/internal/objectstore"
	"github.com/memovai/contextgit/internal/refcatalog"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	projectRoot := t.TempDir()
	controlDir := filepath.Join(projectRoot, ".mem")
	require.NoError(t, os.MkdirAll(controlDir, 0o755))

	store, err := objectstore.Init(filepath.Join(controlDir, "memov.git"))
	require.NoError(t, err)
	catalog, err := refcatalog.Load(controlDir)
	require.NoError(t, err)
	matcher, err := ignore.Load(projectRoot, ".git")
	require.NoError(t, err)

	e := &Engine{
		ProjectRoot:    projectRoot,
		ControlDirName: ".mem",
		HostSCMDir:     ".git",
		BranchPrefix:   "develop/",
		Author:         object.Signature{Name: "User", Email: "user@example.com", When: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Store:          store,
		Catalog:        catalog,
		Matcher:        matcher,
	}
	return e, projectRoot
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
}

func TestTrack_FirstCommitCreatesMain(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")

	res, err := e.Track([]string{"a.txt"}, "", "", true)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, res.Files)
	require.Equal(t, "main", e.Catalog.Current())

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	require.Contains(t, files, "a.txt")
}

func TestTrack_DoesNotCaptureManualEdits(t *testing.T) {
	// Scenario S2: lib.py tracked at H0, user edits it, then track(new.py)
	// must reuse lib.py's HEAD blob, not rehash the workspace.
	e, root := newTestEngine(t)
	writeFile(t, root, "lib.py", "v0")
	r0, err := e.Track([]string{"lib.py"}, "", "", true)
	require.NoError(t, err)

	writeFile(t, root, "lib.py", "v1-manual-edit")
	writeFile(t, root, "new.py", "new file")

	r1, err := e.Track([]string{"new.py"}, "p", "r", false)
	require.NoError(t, err)
	require.Equal(t, []string{"new.py"}, r1.Files)

	h0Files, err := e.Store.FileBlobMapAt(r0.CommitID)
	require.NoError(t, err)
	h1Files, err := e.Store.FileBlobMapAt(r1.CommitID)
	require.NoError(t, err)
	require.Equal(t, h0Files["lib.py"], h1Files["lib.py"], "track must not capture the concurrent manual edit")
}

func TestSnapshotPartial_IsolatesUnclaimedFiles(t *testing.T) {
	// Scenario S1: a.txt and b.txt tracked; user edits a.txt, AI edits b.txt.
	// A partial snapshot over {b.txt} must leave a.txt's blob untouched.
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	writeFile(t, root, "b.txt", "B")
	h0, err := e.Track([]string{"a.txt", "b.txt"}, "", "", true)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "A2")
	writeFile(t, root, "b.txt", "B2")

	res, err := e.SnapshotPartial("Create snapshot", []string{"b.txt"}, "p", "r", "", false)
	require.NoError(t, err)
	require.Equal(t, []string{"b.txt"}, res.Files)

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	h0Files, err := e.Store.FileBlobMapAt(h0.CommitID)
	require.NoError(t, err)
	require.Equal(t, h0Files["a.txt"], files["a.txt"], "unclaimed file must inherit HEAD's blob")
	require.NotEqual(t, h0Files["b.txt"], files["b.txt"])
}

func TestSnapshotPartial_MissingWorkspacePathFallsBackToHead(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	h0, err := e.Track([]string{"a.txt"}, "", "", true)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))

	res, err := e.SnapshotPartial("Create snapshot", []string{"a.txt"}, "", "", "", false)
	require.NoError(t, err)

	h0Files, err := e.Store.FileBlobMapAt(h0.CommitID)
	require.NoError(t, err)
	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	require.Equal(t, h0Files["a.txt"], files["a.txt"])
}

func TestSnapshot_DeterministicReuseWhenUnchanged(t *testing.T) {
	// Scenario S4: snapshot-all over an unchanged workspace reproduces HEAD's tree id.
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	h0, err := e.Track([]string{"a.txt"}, "", "", true)
	require.NoError(t, err)
	h0Commit, err := e.Store.GetCommit(h0.CommitID)
	require.NoError(t, err)

	res, err := e.Snapshot("Create snapshot", "", "", "", false)
	require.NoError(t, err)
	res1Commit, err := e.Store.GetCommit(res.CommitID)
	require.NoError(t, err)

	require.Equal(t, h0Commit.TreeHash, res1Commit.TreeHash)
	require.Empty(t, res.Files)
}

func TestRename_PreservesBlobIDUnderNewPath(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "old.txt", "content")
	h0, err := e.Track([]string{"old.txt"}, "", "", true)
	require.NoError(t, err)
	h0Files, err := e.Store.FileBlobMapAt(h0.CommitID)
	require.NoError(t, err)

	require.NoError(t, os.Rename(filepath.Join(root, "old.txt"), filepath.Join(root, "new.txt")))
	res, err := e.Rename("old.txt", "new.txt", "rename", "done", false)
	require.NoError(t, err)

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	require.NotContains(t, files, "old.txt")
	require.Equal(t, h0Files["old.txt"], files["new.txt"])
}

func TestRename_RehashesSurvivingTrackedFiles(t *testing.T) {
	// Rename must rehash every surviving tracked path from the workspace,
	// not copy HEAD's blob ids verbatim — a concurrent manual edit to
	// another tracked file (or to the renamed file itself, carried over by
	// the physical move) must be captured in the rename commit.
	e, root := newTestEngine(t)
	writeFile(t, root, "old.txt", "v1")
	writeFile(t, root, "other.txt", "v1")
	_, err := e.Track([]string{"old.txt", "other.txt"}, "", "", true)
	require.NoError(t, err)

	writeFile(t, root, "other.txt", "v2-manual-edit")
	require.NoError(t, os.Rename(filepath.Join(root, "old.txt"), filepath.Join(root, "new.txt")))
	res, err := e.Rename("old.txt", "new.txt", "", "", false)
	require.NoError(t, err)

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	expected, err := e.Store.WriteBlob([]byte("v2-manual-edit"))
	require.NoError(t, err)
	require.Equal(t, expected, files["other.txt"])
}

func TestRename_UntrackedSourceFails(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Track(nil, "", "", true)
	require.NoError(t, err)
	_, err = e.Rename("nope.txt", "new.txt", "", "", false)
	require.Error(t, err)
}

func TestRemove_DropsPathWithoutTouchingOthers(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	writeFile(t, root, "b.txt", "B")
	h0, err := e.Track([]string{"a.txt", "b.txt"}, "", "", true)
	require.NoError(t, err)
	h0Files, err := e.Store.FileBlobMapAt(h0.CommitID)
	require.NoError(t, err)

	res, err := e.Remove("b.txt", "remove b", "done", false)
	require.NoError(t, err)

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	require.NotContains(t, files, "b.txt")
	require.Equal(t, h0Files["a.txt"], files["a.txt"])
}

func TestRemove_RehashesSurvivingTrackedFiles(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	writeFile(t, root, "b.txt", "B")
	_, err := e.Track([]string{"a.txt", "b.txt"}, "", "", true)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "A-manual-edit")
	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	res, err := e.Remove("b.txt", "remove b", "done", false)
	require.NoError(t, err)

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	expected, err := e.Store.WriteBlob([]byte("A-manual-edit"))
	require.NoError(t, err)
	require.Equal(t, expected, files["a.txt"])
}

func TestSnapshot_DropsFilesRemovedFromWorkspace(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	writeFile(t, root, "b.txt", "B")
	_, err := e.Track([]string{"a.txt", "b.txt"}, "", "", true)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	res, err := e.Snapshot("Remove", "", "", "", true)
	require.NoError(t, err)

	files, err := e.Store.FileBlobMapAt(res.CommitID)
	require.NoError(t, err)
	require.NotContains(t, files, "b.txt")
	require.Contains(t, files, "a.txt")
}
