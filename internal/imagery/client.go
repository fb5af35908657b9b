// Package imagery fetches species photos from the listing sites and
// keeps copies in an on-disk cache.
package imagery

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Fetch failures callers branch on.
var (
	ErrMissingURL     = errors.New("missing url")
	ErrInvalidScheme  = errors.New("invalid url scheme")
	ErrHostNotAllowed = errors.New("host not allowed")
	ErrNotAnImage     = errors.New("remote content was not an image")
	ErrTooLarge       = errors.New("remote image too large")
)

// StatusError is the non-200 status of a remote fetch.
type StatusError int

func (e StatusError) Error() string {
	return fmt.Sprintf("remote image returned %d", int(e))
}

// DefaultAllowedHosts covers the NOAA species profiles the catalog
// links to.
var DefaultAllowedHosts = []string{
	"www.fisheries.noaa.gov",
	"fisheries.noaa.gov",
}

// Config controls fetching and caching.
type Config struct {
	AllowedHosts []string
	CacheDir     string
	CacheTTL     time.Duration
	Timeout      time.Duration
	MaxBytes     int64
	UserAgent    string
}

// Client fetches remote images with a host allowlist and a content
// cache keyed by URL hash. Fetches are single attempts bounded by the
// client timeout.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a client and makes sure the cache directory exists.
// An empty cache dir disables caching.
func NewClient(cfg Config) (*Client, error) {
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create image cache dir: %w", err)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ocean-atlas/0.1 (+local dev)"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ValidateURL checks the scheme and host allowlist and returns the
// trimmed URL.
func (c *Client) ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidScheme
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range c.cfg.AllowedHosts {
		if host == strings.ToLower(allowed) {
			return raw, nil
		}
	}
	return "", ErrHostNotAllowed
}

// CacheKey is the hex sha256 of the URL.
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// FetchBytes returns the image bytes, their content type, and whether
// they came from the disk cache.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, string, bool, error) {
	safe, err := c.ValidateURL(rawURL)
	if err != nil {
		return nil, "", false, err
	}

	key := CacheKey(safe)
	if data, ok := c.readCache(key); ok {
		return data, http.DetectContentType(data), true, nil
	}

	data, ctype, err := c.fetchRemote(ctx, safe)
	if err != nil {
		return nil, "", false, err
	}
	c.writeCache(key, data)
	return data, ctype, false, nil
}

// Fetch decodes the image for rendering.
func (c *Client) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	data, _, _, err := c.FetchBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (c *Client) fetchRemote(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch remote image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", StatusError(resp.StatusCode)
	}
	ctype := resp.Header.Get("Content-Type")
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	if !strings.HasPrefix(ctype, "image/") {
		return nil, "", ErrNotAnImage
	}

	body := io.Reader(resp.Body)
	if c.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, c.cfg.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read remote image: %w", err)
	}
	if c.cfg.MaxBytes > 0 && int64(len(data)) > c.cfg.MaxBytes {
		return nil, "", ErrTooLarge
	}
	return data, ctype, nil
}

func (c *Client) readCache(key string) ([]byte, bool) {
	if c.cfg.CacheDir == "" {
		return nil, false
	}
	path := filepath.Join(c.cfg.CacheDir, key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.cfg.CacheTTL > 0 && time.Since(info.ModTime()) > c.cfg.CacheTTL {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// writeCache is best effort: a full disk must not fail the request.
func (c *Client) writeCache(key string, data []byte) {
	if c.cfg.CacheDir == "" {
		return
	}
	path := filepath.Join(c.cfg.CacheDir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Printf("[Imagery] failed to cache image: %v", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Printf("[Imagery] failed to cache image: %v", err)
	}
}
