package blend

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrOversizeEntry signals that a freshly generated blend by itself
// exceeds the configured cache maximum. The entry is kept anyway; the
// caller should log the condition and carry on.
var ErrOversizeEntry = errors.New("cache entry larger than the configured cache maximum")

const (
	indexFile = "index.json"
	blendsDir = "blends"
)

// Entry records one cached blend.
type Entry struct {
	Key       string    `json:"key"`
	File      string    `json:"file"` // basename under the blends directory
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type cacheIndex struct {
	Entries map[string]Entry `json:"entries"`
}

type hashMemo struct {
	modTime time.Time
	size    int64
	sum     string
}

// Cache is a content-addressed store of blended wallpapers. The index
// is persisted as a JSON document rewritten atomically on every
// mutation, so a crash mid-write never leaves a corrupt index or a
// half-written image visible.
type Cache struct {
	dir      string
	maxBytes int64
	entries  map[string]Entry
	hashes   map[string]hashMemo
}

// Open loads (or initializes) the cache rooted at dir. maxBytes bounds
// the total size of cached blends.
func Open(dir string, maxBytes int64) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, blendsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		entries:  make(map[string]Entry),
		hashes:   make(map[string]hashMemo),
	}

	raw, err := os.ReadFile(filepath.Join(dir, indexFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("reading cache index: %w", err)
	}

	var idx cacheIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		// A damaged index is discarded, not fatal; blends regenerate.
		return c, nil
	}
	if idx.Entries != nil {
		c.entries = idx.Entries
	}
	return c, nil
}

// GetOrCreate returns the path of the blend of pathA and pathB at the
// given quantized ratio and target resolution, generating and caching
// it on a miss. The second return value reports whether this was a pure
// cache hit.
func (c *Cache) GetOrCreate(pathA, pathB string, ratio float64, size image.Point) (string, bool, error) {
	key, err := c.key(pathA, pathB, ratio, size)
	if err != nil {
		return "", false, err
	}

	if e, ok := c.entries[key]; ok {
		p := c.blendPath(e.File)
		if _, err := os.Stat(p); err == nil {
			return p, true, nil
		}
		// Backing file vanished; drop the stale entry and regenerate.
		delete(c.entries, key)
	}

	img, err := Files(pathA, pathB, ratio, size)
	if err != nil {
		return "", false, err
	}

	name := key[:16] + ".jpg"
	final := c.blendPath(name)
	sizeBytes, err := c.writeAtomic(final, img)
	if err != nil {
		return "", false, err
	}

	c.entries[key] = Entry{
		Key:       key,
		File:      name,
		SizeBytes: sizeBytes,
		CreatedAt: time.Now(),
	}

	oversize := c.evict(key)
	if err := c.saveIndex(); err != nil {
		return "", false, err
	}
	if oversize {
		return final, false, ErrOversizeEntry
	}
	return final, false, nil
}

// Clear removes every cached blend and resets the index.
func (c *Cache) Clear() error {
	for key, e := range c.entries {
		os.Remove(c.blendPath(e.File))
		delete(c.entries, key)
	}
	return c.saveIndex()
}

// Size returns the total size of all cached blends in bytes.
func (c *Cache) Size() int64 {
	var total int64
	for _, e := range c.entries {
		total += e.SizeBytes
	}
	return total
}

// Len returns the number of cached blends.
func (c *Cache) Len() int { return len(c.entries) }

func (c *Cache) blendPath(name string) string {
	return filepath.Join(c.dir, blendsDir, name)
}

// key derives the content-addressed cache key: hashes of both source
// files plus the quantized ratio and target resolution. Identical keys
// always resolve to byte-identical output.
func (c *Cache) key(pathA, pathB string, ratio float64, size image.Point) (string, error) {
	ha, err := c.fileHash(pathA)
	if err != nil {
		return "", err
	}
	hb, err := c.fileHash(pathB)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.4f|%dx%d", ha, hb, ratio, size.X, size.Y)))
	return hex.EncodeToString(sum[:]), nil
}

// fileHash returns the sha256 of the file contents. The result is
// memoized per path and recomputed only when the file's modification
// time or size changes, so invalidation tracks content, not paths.
func (c *Cache) fileHash(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if memo, ok := c.hashes[path]; ok && memo.modTime.Equal(fi.ModTime()) && memo.size == fi.Size() {
		return memo.sum, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	c.hashes[path] = hashMemo{modTime: fi.ModTime(), size: fi.Size(), sum: sum}
	return sum, nil
}

// writeAtomic encodes img to a temporary file in the blends directory
// and renames it into place, so a crash mid-write cannot leave a
// corrupt entry visible.
func (c *Cache) writeAtomic(final string, img image.Image) (int64, error) {
	tmp := c.blendPath(".tmp-" + uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating temp blend: %w", err)
	}
	if err := encodeJPEG(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("closing temp blend: %w", err)
	}
	fi, err := os.Stat(tmp)
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("stat temp blend: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("renaming blend into place: %w", err)
	}
	return fi.Size(), nil
}

// evict removes entries oldest-first until the size invariant holds,
// never removing the just-inserted key. Returns true when that single
// entry alone still exceeds the maximum.
func (c *Cache) evict(justInserted string) bool {
	if c.maxBytes <= 0 || c.Size() <= c.maxBytes {
		return false
	}

	victims := make([]Entry, 0, len(c.entries))
	for key, e := range c.entries {
		if key != justInserted {
			victims = append(victims, e)
		}
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].CreatedAt.Before(victims[j].CreatedAt)
	})

	for _, e := range victims {
		if c.Size() <= c.maxBytes {
			break
		}
		os.Remove(c.blendPath(e.File))
		delete(c.entries, e.Key)
	}
	return c.Size() > c.maxBytes
}

// saveIndex persists the index with read-modify-atomic-rewrite
// discipline: serialize, write to a temp file, rename over the index.
func (c *Cache) saveIndex() error {
	raw, err := json.MarshalIndent(cacheIndex{Entries: c.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache index: %w", err)
	}
	tmp := filepath.Join(c.dir, indexFile+".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing cache index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, indexFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing cache index: %w", err)
	}
	return nil
}
