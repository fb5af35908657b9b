package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"

	"github.com/endangered-ocean/server/internal/cache"
	"github.com/endangered-ocean/server/internal/catalog"
	"github.com/endangered-ocean/server/internal/pixelate"
	"github.com/endangered-ocean/server/internal/render"
	"github.com/endangered-ocean/server/pkg/oceanpalette"
)

// ErrSpeciesNotFound reports a marker request for an unknown record.
var ErrSpeciesNotFound = errors.New("species not found")

// ErrSuperseded reports that a newer build for the same surface began
// while this one was rendering. The returned bytes are still valid for
// the caller that asked; they are just no longer the current surface.
var ErrSuperseded = errors.New("surface render superseded")

// Marker image provenance values, reported to clients.
const (
	MarkerSourceImage       = "image"
	MarkerSourcePlaceholder = "placeholder"
)

// ImageFetcher resolves a species photo URL to a decoded image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// MarkerServiceConfig contains marker service configuration.
type MarkerServiceConfig struct {
	Store     *catalog.Store
	Fetcher   ImageFetcher
	Renderer  *render.SurfaceRenderer
	Cache     *cache.Manager
	Layout    *LayoutService
	PixelSize int
}

// SurfaceOptions selects which composite surface to build.
type SurfaceOptions struct {
	Width     int
	PixelSize int
	Palette   string
	Status    string
	Threat    string
	Category  string
}

// MarkerService renders pixelated marker tiles and composite column
// surfaces. A generation counter per surface key keeps a slow build
// from overwriting the result of a build that started after it.
type MarkerService struct {
	store     *catalog.Store
	fetcher   ImageFetcher
	renderer  *render.SurfaceRenderer
	cache     *cache.Manager
	layout    *LayoutService
	pixelSize int

	genMu    sync.Mutex
	gens     map[string]uint64
	surfaces map[string][]byte
}

// NewMarkerService creates a new marker service.
func NewMarkerService(cfg MarkerServiceConfig) *MarkerService {
	pixelSize := cfg.PixelSize
	if pixelSize <= 0 {
		pixelSize = 8
	}
	return &MarkerService{
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		renderer:  cfg.Renderer,
		cache:     cfg.Cache,
		layout:    cfg.Layout,
		pixelSize: pixelSize,
		gens:      make(map[string]uint64),
		surfaces:  make(map[string][]byte),
	}
}

// MarkerPNG returns the pixelated tile for one species along with its
// provenance. A species whose photo cannot be fetched gets the
// placeholder, never an error.
func (s *MarkerService) MarkerPNG(ctx context.Context, speciesID int64, width, height, pixelSize int) ([]byte, string, error) {
	sp, ok := s.store.SpeciesByID(speciesID)
	if !ok {
		return nil, "", ErrSpeciesNotFound
	}

	if width <= 0 {
		width = s.renderer.MarkerSize()
	}
	if height <= 0 {
		height = s.renderer.MarkerSize()
	}
	if pixelSize <= 0 {
		pixelSize = s.pixelSize
	}

	key := cache.MarkerKey(speciesID, width, height, pixelSize)
	if s.cache != nil {
		if data, source, ok := splitRendered(s.cache.GetRendered(key)); ok {
			return data, source, nil
		}
	}

	src, source := s.sourceImage(ctx, sp, width, height)
	tile := pixelate.Render(src, width, height, pixelSize)
	data, err := s.renderer.EncodePNG(tile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode marker: %w", err)
	}

	if s.cache != nil {
		s.cache.SetRendered(key, tagRendered(source, data))
	}
	return data, source, nil
}

// Surface returns the current committed surface for the options,
// building it on first request.
func (s *MarkerService) Surface(ctx context.Context, opts SurfaceOptions) ([]byte, error) {
	opts = s.normalize(opts)
	if data, ok := s.CurrentSurface(opts); ok {
		return data, nil
	}
	data, err := s.BuildSurface(ctx, opts)
	if errors.Is(err, ErrSuperseded) {
		return data, nil
	}
	return data, err
}

// BuildSurface renders the composite column for the options. The bytes
// go back to the caller either way; they are recorded as the current
// surface only if no newer build started for the same key meanwhile,
// otherwise the error is ErrSuperseded.
func (s *MarkerService) BuildSurface(ctx context.Context, opts SurfaceOptions) ([]byte, error) {
	opts = s.normalize(opts)
	key := s.surfaceKey(opts)
	gen := s.beginGeneration(key)

	layout, err := s.layout.Layout(opts.Status, opts.Threat, opts.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to compute layout: %w", err)
	}

	size := s.renderer.MarkerSize()
	placed := make([]render.PlacedMarker, 0, len(layout.Markers))
	for _, m := range layout.Markers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sp, ok := s.store.SpeciesByID(m.SpeciesID)
		if !ok {
			continue
		}
		src, _ := s.sourceImage(ctx, sp, size, size)
		placed = append(placed, render.PlacedMarker{
			Image: pixelate.Render(src, size, size, opts.PixelSize),
			Left:  m.Left,
			Top:   m.Top,
			Label: sp.CommonName,
		})
	}

	layoutCfg := s.layout.Config()
	data, err := s.renderer.RenderSurface(render.SurfaceSpec{
		Width:              opts.Width,
		TotalExtent:        layout.TotalExtent,
		Ticks:              layout.Ticks,
		PixelsPerDepthUnit: layoutCfg.PixelsPerDepthUnit,
		TopPadding:         layoutCfg.TopPadding,
		Palette:            opts.Palette,
	}, placed)
	if err != nil {
		return nil, fmt.Errorf("failed to render surface: %w", err)
	}

	if !s.commitSurface(key, gen, data) {
		return data, ErrSuperseded
	}
	return data, nil
}

// CurrentSurface returns the last committed surface for the options.
func (s *MarkerService) CurrentSurface(opts SurfaceOptions) ([]byte, bool) {
	key := s.surfaceKey(s.normalize(opts))
	s.genMu.Lock()
	defer s.genMu.Unlock()
	data, ok := s.surfaces[key]
	return data, ok
}

func (s *MarkerService) normalize(opts SurfaceOptions) SurfaceOptions {
	if opts.Width <= 0 {
		opts.Width = s.renderer.SurfaceWidth()
	}
	if opts.PixelSize <= 0 {
		opts.PixelSize = s.pixelSize
	}
	if opts.Palette == "" {
		opts.Palette = s.renderer.DefaultPalette()
	}
	opts.Status = strings.TrimSpace(opts.Status)
	opts.Threat = strings.TrimSpace(opts.Threat)
	opts.Category = strings.TrimSpace(opts.Category)
	return opts
}

func (s *MarkerService) surfaceKey(opts SurfaceOptions) string {
	return cache.SurfaceKey(opts.Width, opts.PixelSize, opts.Palette, opts.Status, opts.Threat, opts.Category)
}

func (s *MarkerService) beginGeneration(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[key]++
	return s.gens[key]
}

// commitSurface records data as current unless a newer generation for
// the key has started. Check and store happen under one lock so a
// stale build can never slip in between.
func (s *MarkerService) commitSurface(key string, gen uint64, data []byte) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen != s.gens[key] {
		return false
	}
	s.surfaces[key] = data
	return true
}

// sourceImage returns the species photo, or the placeholder tile when
// there is no URL or the fetch fails.
func (s *MarkerService) sourceImage(ctx context.Context, sp catalog.Species, width, height int) (image.Image, string) {
	if sp.ImageURL != "" && s.fetcher != nil {
		img, err := s.fetcher.Fetch(ctx, sp.ImageURL)
		if err == nil {
			return img, MarkerSourceImage
		}
		log.Printf("[Markers] placeholder for %q: %v", sp.CommonName, err)
	}
	return s.renderer.Placeholder(width, height, oceanpalette.StatusColor(sp.Status)), MarkerSourcePlaceholder
}

// Cached marker entries carry a one byte source tag ahead of the PNG.
func tagRendered(source string, data []byte) []byte {
	tag := byte('p')
	if source == MarkerSourceImage {
		tag = 'i'
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, tag)
	return append(out, data...)
}

func splitRendered(data []byte, found bool) ([]byte, string, bool) {
	if !found || len(data) < 2 {
		return nil, "", false
	}
	source := MarkerSourcePlaceholder
	if data[0] == 'i' {
		source = MarkerSourceImage
	}
	return data[1:], source, true
}
