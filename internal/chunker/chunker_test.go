package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	c := New(768, 100)
	got := c.ChunkText("short text")
	require.Equal(t, []string{"short text"}, got)
}

func TestChunkText_EmptyTextYieldsNoChunks(t *testing.T) {
	c := New(768, 100)
	require.Empty(t, c.ChunkText(""))
}

func TestChunkText_BreaksOnWhitespaceWithinWindow(t *testing.T) {
	c := New(20, 5)
	text := "aaaaaaaaaa bbbbbbbbbb cccccccccc dddddddddd"
	chunks := c.ChunkText(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.False(t, strings.HasPrefix(chunk, " "))
		require.False(t, strings.HasSuffix(chunk, " "))
	}
}

func TestChunkText_TerminatesWithinBound(t *testing.T) {
	c := New(10, 9) // overlap nearly equal to size, exercises the anti-stall guard
	text := strings.Repeat("word ", 50)
	chunks := c.ChunkText(text)
	require.NotEmpty(t, chunks)
	require.Less(t, len(chunks), 200)
}

func TestChunkWithMetadata_IndexesAndTotals(t *testing.T) {
	c := New(20, 5)
	text := "aaaaaaaaaa bbbbbbbbbb cccccccccc dddddddddd"
	chunks := c.ChunkWithMetadata(text)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		require.Equal(t, i, ch.Index)
		require.Equal(t, len(chunks), ch.TotalCount)
	}
}
