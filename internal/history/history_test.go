package history

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
	"github.com/memovai/contextgit/internal/snapshot"
)

func newTestEngine(t *testing.T) (*snapshot.Engine, string) {
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

	e := &snapshot.Engine{
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

func TestHistory_TopologicalAndDeduped(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	r0, err := e.Track([]string{"a.txt"}, "p0", "r0", true)
	require.NoError(t, err)
	writeFile(t, root, "a.txt", "A2")
	r1, err := e.Snapshot("Create snapshot", "p1", "r1", "", false)
	require.NoError(t, err)

	rows, err := History(e.Store, e.Catalog)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, r0.CommitID.String(), rows[0].CommitID)
	require.Equal(t, r1.CommitID.String(), rows[1].CommitID)
	require.Equal(t, "track", rows[0].Operation)
	require.Equal(t, "snap", rows[1].Operation)
}

func TestHistory_NoteOverridesMessageBody(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	r0, err := e.Track([]string{"a.txt"}, "original prompt", "original response", true)
	require.NoError(t, err)

	require.NoError(t, e.Store.SetNote(r0.CommitID, "Prompt: amended prompt\nResponse: amended response\n"))

	rows, err := History(e.Store, e.Catalog)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "amended prompt", rows[0].Prompt)
	require.Equal(t, "amended response", rows[0].Response)
}

func TestShow_ReturnsTrackedFiles(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	writeFile(t, root, "b.txt", "B")
	r0, err := e.Track([]string{"a.txt", "b.txt"}, "p", "r", true)
	require.NoError(t, err)

	show, err := Show(e.Store, r0.CommitID.String())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, show.Files)
	require.Equal(t, "p", show.Message.Prompt)
}

func TestJump_RestoresWorkspaceAndRemovesStaleFiles(t *testing.T) {
	// Scenario S5-adjacent: jump restores an older tree and detaches HEAD.
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	h0, err := e.Track([]string{"a.txt"}, "", "", true)
	require.NoError(t, err)

	writeFile(t, root, "b.txt", "B")
	_, err = e.Track([]string{"b.txt"}, "", "", true)
	require.NoError(t, err)

	require.NoError(t, Jump(e, h0.CommitID.String()))

	_, statErr := os.Stat(filepath.Join(root, "b.txt"))
	require.True(t, os.IsNotExist(statErr), "b.txt should be removed after jumping before its creation")
	data, readErr := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, readErr)
	require.Equal(t, "A", string(data))

	require.Equal(t, "", e.Catalog.Current())
}

func TestStatus_ReportsWorkspaceDiff(t *testing.T) {
	e, root := newTestEngine(t)
	writeFile(t, root, "a.txt", "A")
	_, err := e.Track([]string{"a.txt"}, "", "", true)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "A2")
	writeFile(t, root, "untracked.txt", "new")

	diff, err := Status(e.Store, e.Matcher, root, ".mem", ".git")
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, diff.Modified)
	require.Equal(t, []string{"untracked.txt"}, diff.Untracked)
}
