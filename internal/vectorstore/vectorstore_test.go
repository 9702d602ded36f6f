package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memovai/contextgit/internal/chunker"
	"github.com/memovai/contextgit/internal/config"
	"github.com/memovai/contextgit/internal/embedding"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := embedding.New(config.EmbeddingDefault)
	require.NoError(t, err)
	s, err := Open(filepath.Join(t.TempDir(), "vectordb.db"), chunker.New(768, 100), backend)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertSplitted_SkipsEmptyRoles(t *testing.T) {
	s := newTestStore(t)
	ids, err := s.InsertSplitted("C1", "a prompt", "", "a plan", map[string]string{"operation_type": "snap"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	recs, err := s.GetByCommit("C1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	roles := map[string]bool{}
	for _, r := range recs {
		roles[r.Metadata["role"]] = true
	}
	require.True(t, roles["prompt"])
	require.True(t, roles["plan"])
	require.False(t, roles["response"])
}

func TestInsertSplitted_AllThreeRolesYieldThreeRecords(t *testing.T) {
	// Scenario S6: one commit with non-empty prompt, response, and plan
	// yields three retrievable records.
	s := newTestStore(t)
	ids, err := s.InsertSplitted("C1", "prompt text", "response text", "plan text", map[string]string{})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	count, err := s.GetCollectionInfo()
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestSearch_FiltersByMetadataAndOrdersByDistance(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertSplitted("C1", "apples and oranges", "", "", map[string]string{"operation_type": "snap"})
	require.NoError(t, err)
	_, err = s.InsertSplitted("C2", "rockets and space travel", "", "", map[string]string{"operation_type": "track"})
	require.NoError(t, err)

	results, err := s.Search("apples and oranges", 5, map[string]string{"role": "prompt"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "C1_prompt_0", results[0].ID)
}

func TestDeleteByCommit_RemovesOnlyThatCommit(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertSplitted("C1", "one", "two", "", map[string]string{})
	require.NoError(t, err)
	_, err = s.InsertSplitted("C2", "three", "", "", map[string]string{})
	require.NoError(t, err)

	n, err := s.DeleteByCommit("C1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	remaining, err := s.GetByCommit("C1")
	require.NoError(t, err)
	require.Empty(t, remaining)

	still, err := s.GetByCommit("C2")
	require.NoError(t, err)
	require.Len(t, still, 1)
}

func TestFindCommitsByFiles_MatchesCommaJoinedMetadata(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertSplitted("C1", "edited a.txt", "", "", map[string]string{"files": "a.txt,b.txt"})
	require.NoError(t, err)
	_, err = s.InsertSplitted("C2", "edited c.txt", "", "", map[string]string{"files": "c.txt"})
	require.NoError(t, err)

	commits, err := s.FindCommitsByFiles([]string{"b.txt"})
	require.NoError(t, err)
	require.Equal(t, []string{"C1"}, commits)
}

func TestReset_ClearsAllRecords(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertSplitted("C1", "prompt", "", "", map[string]string{})
	require.NoError(t, err)

	require.NoError(t, s.Reset())

	count, err := s.GetCollectionInfo()
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
