// Package cache provides caching for rendered images and layout
// results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	RenderedSizeMB int
	RenderedTTL    time.Duration
	LayoutEntries  int
}

// Manager holds the rendered image cache and the layout result cache.
// Rendered PNGs live in bigcache so the bytes stay off the GC heap;
// layout responses are small JSON documents kept in an LRU.
type Manager struct {
	rendered *bigcache.BigCache
	layouts  *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	renderedConfig := bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.RenderedTTL,
		CleanWindow:        cfg.RenderedTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       256 * 1024,
		HardMaxCacheSize:   cfg.RenderedSizeMB,
		Verbose:            false,
	}

	rendered, err := bigcache.New(context.Background(), renderedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create rendered cache: %w", err)
	}

	layouts, err := lru.New[string, []byte](cfg.LayoutEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create layout cache: %w", err)
	}

	return &Manager{
		rendered: rendered,
		layouts:  layouts,
	}, nil
}

// GetRendered retrieves a rendered image from cache.
func (m *Manager) GetRendered(key string) ([]byte, bool) {
	data, err := m.rendered.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetRendered stores a rendered image in cache.
func (m *Manager) SetRendered(key string, data []byte) error {
	return m.rendered.Set(key, data)
}

// GetLayout retrieves an encoded layout response from cache.
func (m *Manager) GetLayout(key string) ([]byte, bool) {
	return m.layouts.Get(key)
}

// SetLayout stores an encoded layout response in cache.
func (m *Manager) SetLayout(key string, data []byte) {
	m.layouts.Add(key, data)
}

// InvalidateLayouts drops every cached layout response.
func (m *Manager) InvalidateLayouts() {
	m.layouts.Purge()
}

// MarkerKey generates a cache key for a pixelated marker image.
func MarkerKey(speciesID int64, width, height, pixelSize int) string {
	return fmt.Sprintf("marker:%d:%dx%d:px%d", speciesID, width, height, pixelSize)
}

// SurfaceKey generates a cache key for a composite surface image.
func SurfaceKey(width, pixelSize int, palette, status, threat, category string) string {
	base := fmt.Sprintf("surface:%d:px%d:%s", width, pixelSize, palette)
	if status == "" && threat == "" && category == "" {
		return base
	}
	return base + ":" + filterHash(status, threat, category)
}

// LayoutKey generates a cache key for a layout response.
func LayoutKey(status, threat, category string) string {
	if status == "" && threat == "" && category == "" {
		return "layout:all"
	}
	return "layout:" + filterHash(status, threat, category)
}

// filterHash digests the filter fields in a fixed order so equal
// filters always map to the same key.
func filterHash(status, threat, category string) string {
	h := sha256.New()
	fmt.Fprintf(h, "status=%s;threat=%s;category=%s", status, threat, category)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"rendered_len": m.rendered.Len(),
		"rendered_cap": m.rendered.Capacity(),
		"layout_len":   m.layouts.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.rendered.Close()
}
