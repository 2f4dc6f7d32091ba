// Package assets locates, fetches and decodes model and image files.
package assets

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a source cannot be located.
var ErrNotFound = errors.New("asset not found")

// maxFetchSize caps a single HTTP download.
const maxFetchSize = 256 << 20

// Fetcher returns the raw bytes of an asset.
type Fetcher interface {
	Load(ctx context.Context, source string) ([]byte, error)
}

// Manager loads assets from local search roots or http(s) URLs.
type Manager struct {
	roots  []string
	client *http.Client
	cache  *Cache
	mu     sync.RWMutex
}

// NewManager creates a manager whose HTTP fetches time out after timeout.
// A zero timeout disables the limit.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		client: &http.Client{Timeout: timeout},
		cache:  NewCache(DefaultCacheSize),
	}
}

// SetCacheLimit changes the byte budget of the raw asset cache.
func (m *Manager) SetCacheLimit(maxBytes int64) {
	m.cache.SetLimit(maxBytes)
}

// AddRoot adds a directory to search for relative sources.
// Roots are searched in reverse order (last added = highest priority).
func (m *Manager) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding root %s: not a directory", dir)
	}

	m.mu.Lock()
	m.roots = append(m.roots, dir)
	m.mu.Unlock()

	return nil
}

// IsURL reports whether source is an http or https URL.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Locate resolves a local source to an existing file path. Absolute paths and
// paths relative to the working directory win over search roots.
func (m *Manager) Locate(source string) (string, error) {
	if IsURL(source) {
		return "", fmt.Errorf("%s: not a local file", source)
	}
	if fileExists(source) {
		return source, nil
	}
	if !filepath.IsAbs(source) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for i := len(m.roots) - 1; i >= 0; i-- {
			p := filepath.Join(m.roots[i], source)
			if fileExists(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, source)
}

// Load returns the bytes of source, from the cache when possible.
func (m *Manager) Load(ctx context.Context, source string) ([]byte, error) {
	if data, ok := m.cache.Get(source); ok {
		return data, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	if IsURL(source) {
		data, err = m.fetch(ctx, source)
	} else {
		data, err = m.readFile(source)
	}
	if err != nil {
		return nil, err
	}

	m.cache.Set(source, data)
	return data, nil
}

// Invalidate drops a cached source so the next Load reads it again.
func (m *Manager) Invalidate(source string) {
	m.cache.Delete(source)
}

// Close forgets all roots and cached data.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.cache.Clear()
}

func (m *Manager) readFile(source string) ([]byte, error) {
	path, err := m.Locate(source)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (m *Manager) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if len(data) > maxFetchSize {
		return nil, fmt.Errorf("fetching %s: body exceeds %d bytes", url, maxFetchSize)
	}
	return data, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DefaultCacheSize is the byte budget of a new Manager's cache.
const DefaultCacheSize = 256 << 20

// Cache is an in-memory cache for loaded assets, bounded by total byte size.
// The least recently used entries are evicted first.
type Cache struct {
	maxBytes int64
	size     int64
	order    *list.List // Front is most recently used
	items    map[string]*list.Element
	mu       sync.Mutex

	// Stats
	hits   int
	misses int
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewCache creates a cache holding at most maxBytes. maxBytes <= 0 means no
// limit.
func NewCache(maxBytes int64) *Cache {
	return &Cache{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Set stores an item in cache. Items larger than the whole budget are not
// stored.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)
	n := int64(len(data))
	if c.maxBytes > 0 && n > c.maxBytes {
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
	c.size += n
	for c.maxBytes > 0 && c.size > c.maxBytes {
		c.removeLocked(c.order.Back().Value.(*cacheEntry).key)
	}
}

// SetLimit changes the byte budget, evicting entries as needed.
func (c *Cache) SetLimit(maxBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxBytes = maxBytes
	for c.maxBytes > 0 && c.size > c.maxBytes {
		c.removeLocked(c.order.Back().Value.(*cacheEntry).key)
	}
}

// Delete removes an item from cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *Cache) removeLocked(key string) {
	el, ok := c.items[key]
	if !ok {
		return
	}
	c.size -= int64(len(el.Value.(*cacheEntry).data))
	c.order.Remove(el)
	delete(c.items, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.size = 0
	c.hits = 0
	c.misses = 0
}

// Size returns the number of cached entries and their total bytes.
func (c *Cache) Size() (entries int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), c.size
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
