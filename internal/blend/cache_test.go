package blend

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheFixtures(t *testing.T) (dir, a, b string) {
	t.Helper()
	dir = t.TempDir()
	a = filepath.Join(dir, "from.png")
	b = filepath.Join(dir, "to.png")
	writePNG(t, a, color.RGBA{220, 180, 90, 255}, 24, 16)
	writePNG(t, b, color.RGBA{10, 20, 60, 255}, 24, 16)
	return dir, a, b
}

func TestCacheRoundTrip(t *testing.T) {
	dir, a, b := cacheFixtures(t)
	c, err := Open(filepath.Join(dir, "cache"), 10<<20)
	require.NoError(t, err)

	p1, hit, err := c.GetOrCreate(a, b, 0.25, image.Point{})
	require.NoError(t, err)
	assert.False(t, hit, "first call must generate")

	first, err := os.ReadFile(p1)
	require.NoError(t, err)

	p2, hit, err := c.GetOrCreate(a, b, 0.25, image.Point{})
	require.NoError(t, err)
	assert.True(t, hit, "second call must be a pure cache hit")
	assert.Equal(t, p1, p2)

	second, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached output must be byte-identical")
	assert.Equal(t, 1, c.Len())
}

func TestCacheDistinctKeys(t *testing.T) {
	dir, a, b := cacheFixtures(t)
	c, err := Open(filepath.Join(dir, "cache"), 10<<20)
	require.NoError(t, err)

	p1, _, err := c.GetOrCreate(a, b, 0.25, image.Point{})
	require.NoError(t, err)
	p2, _, err := c.GetOrCreate(a, b, 0.5, image.Point{})
	require.NoError(t, err)
	p3, _, err := c.GetOrCreate(a, b, 0.25, image.Point{X: 8, Y: 8})
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2, "different ratios must not share an entry")
	assert.NotEqual(t, p1, p3, "different resolutions must not share an entry")
	assert.Equal(t, 3, c.Len())
}

func TestCacheContentInvalidation(t *testing.T) {
	dir, a, b := cacheFixtures(t)
	c, err := Open(filepath.Join(dir, "cache"), 10<<20)
	require.NoError(t, err)

	p1, _, err := c.GetOrCreate(a, b, 0.25, image.Point{})
	require.NoError(t, err)

	// Rewriting the source with different content must produce a new
	// key even though the path is unchanged.
	writePNG(t, a, color.RGBA{5, 5, 5, 255}, 32, 32)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(a, future, future))

	p2, hit, err := c.GetOrCreate(a, b, 0.25, image.Point{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotEqual(t, p1, p2)
}

func TestCachePersistsAcrossOpens(t *testing.T) {
	dir, a, b := cacheFixtures(t)
	cacheDir := filepath.Join(dir, "cache")

	c1, err := Open(cacheDir, 10<<20)
	require.NoError(t, err)
	p1, _, err := c1.GetOrCreate(a, b, 0.75, image.Point{})
	require.NoError(t, err)

	c2, err := Open(cacheDir, 10<<20)
	require.NoError(t, err)
	p2, hit, err := c2.GetOrCreate(a, b, 0.75, image.Point{})
	require.NoError(t, err)
	assert.True(t, hit, "reopened cache must serve the persisted entry")
	assert.Equal(t, p1, p2)
}

func TestCacheEviction(t *testing.T) {
	dir, a, b := cacheFixtures(t)

	// Find a budget that fits roughly two blends.
	probe, err := Open(filepath.Join(dir, "probe"), 0)
	require.NoError(t, err)
	p, _, err := probe.GetOrCreate(a, b, 0.1, image.Point{})
	require.NoError(t, err)
	fi, err := os.Stat(p)
	require.NoError(t, err)
	budget := fi.Size()*2 + fi.Size()/2

	c, err := Open(filepath.Join(dir, "cache"), budget)
	require.NoError(t, err)

	var oldest string
	for i, ratio := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		p, _, err := c.GetOrCreate(a, b, ratio, image.Point{})
		require.NoError(t, err)
		if i == 0 {
			oldest = p
		}
		assert.LessOrEqual(t, c.Size(), budget, "size invariant must hold after every insertion")
	}

	_, statErr := os.Stat(oldest)
	assert.True(t, os.IsNotExist(statErr), "oldest entry should have been evicted")
}

func TestCacheOversizeEntryKept(t *testing.T) {
	dir, a, b := cacheFixtures(t)
	c, err := Open(filepath.Join(dir, "cache"), 1) // smaller than any blend
	require.NoError(t, err)

	p, hit, err := c.GetOrCreate(a, b, 0.5, image.Point{})
	assert.ErrorIs(t, err, ErrOversizeEntry)
	assert.False(t, hit)

	// The oversized entry is kept and usable despite the warning.
	_, statErr := os.Stat(p)
	assert.NoError(t, statErr)
	assert.Equal(t, 1, c.Len())

	p2, hit, err := c.GetOrCreate(a, b, 0.5, image.Point{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, p, p2)
}

func TestCacheSurvivesDamagedIndex(t *testing.T) {
	dir, a, b := cacheFixtures(t)
	cacheDir := filepath.Join(dir, "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte("{broken"), 0o644))

	c, err := Open(cacheDir, 10<<20)
	require.NoError(t, err, "a damaged index is discarded, not fatal")

	_, hit, err := c.GetOrCreate(a, b, 0.5, image.Point{})
	require.NoError(t, err)
	assert.False(t, hit)
}
