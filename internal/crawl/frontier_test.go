package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierDedup(t *testing.T) {
	t.Parallel()

	f := newFrontier(10)
	require.True(t, f.push("https://example.com/a", 0))
	require.False(t, f.push("https://example.com/a", 1), "duplicate must be rejected")
	require.True(t, f.seen("https://example.com/a"))
}

func TestFrontierCap(t *testing.T) {
	t.Parallel()

	f := newFrontier(2)
	require.True(t, f.push("https://example.com/a", 0))
	require.True(t, f.push("https://example.com/b", 0))
	require.False(t, f.push("https://example.com/c", 0), "cap reached")
}

func TestFrontierFIFO(t *testing.T) {
	t.Parallel()

	f := newFrontier(10)
	f.push("https://example.com/a", 0)
	f.push("https://example.com/b", 1)
	f.push("https://example.com/c", 1)

	batch := f.pop(2)
	require.Len(t, batch, 2)
	require.Equal(t, "https://example.com/a", batch[0].url)
	require.Equal(t, "https://example.com/b", batch[1].url)

	batch = f.pop(5)
	require.Len(t, batch, 1)
	require.Equal(t, "https://example.com/c", batch[0].url)
	require.True(t, f.empty())
}
