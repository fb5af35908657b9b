// Package service provides business logic for the depth atlas server.
package service

import (
	"encoding/json"
	"fmt"

	"github.com/endangered-ocean/server/internal/cache"
	"github.com/endangered-ocean/server/internal/catalog"
	"github.com/endangered-ocean/server/pkg/depthlayout"
)

// LayoutServiceConfig contains layout service configuration.
type LayoutServiceConfig struct {
	Store  *catalog.Store
	Cache  *cache.Manager
	Layout depthlayout.Config
}

// LayoutService computes marker positions for the water column.
type LayoutService struct {
	store  *catalog.Store
	cache  *cache.Manager
	layout depthlayout.Config
}

// NewLayoutService creates a new layout service.
func NewLayoutService(cfg LayoutServiceConfig) *LayoutService {
	return &LayoutService{
		store:  cfg.Store,
		cache:  cfg.Cache,
		layout: cfg.Layout,
	}
}

// LayoutMarker is one positioned species in the column.
type LayoutMarker struct {
	SpeciesID   int64   `json:"species_id"`
	CommonName  string  `json:"common_name"`
	Status      string  `json:"status"`
	HasImage    bool    `json:"has_image"`
	AnchorDepth int     `json:"anchor_depth"`
	BucketKey   int     `json:"bucket_key"`
	Lane        int     `json:"lane"`
	Row         int     `json:"row"`
	Top         float64 `json:"top"`
	Left        float64 `json:"left"`
}

// LayoutResult is the positioned column for one filter.
type LayoutResult struct {
	Markers        []LayoutMarker `json:"markers"`
	MaxAnchorDepth int            `json:"max_anchor_depth"`
	TotalExtent    float64        `json:"total_extent"`
	Ticks          []int          `json:"ticks"`
	Placed         int            `json:"placed"`
	Skipped        int            `json:"skipped"`
}

// Layout positions every species matching the filter. Species without
// both depth bounds are skipped, not failed.
func (s *LayoutService) Layout(status, threat, category string) (*LayoutResult, error) {
	species := s.store.Species(catalog.Filter{
		Status:   status,
		Threat:   threat,
		Category: category,
		Limit:    catalog.MaxLimit,
	})

	records := make([]depthlayout.Record, len(species))
	byID := make(map[int64]catalog.Species, len(species))
	for i, sp := range species {
		records[i] = depthlayout.Record{
			ID:       sp.ID,
			MinDepth: sp.MinDepthM,
			MaxDepth: sp.MaxDepthM,
		}
		byID[sp.ID] = sp
	}

	positioned, maxAnchor := depthlayout.AssignPositions(records, s.layout)

	markers := make([]LayoutMarker, len(positioned))
	for i, m := range positioned {
		sp := byID[m.ID]
		markers[i] = LayoutMarker{
			SpeciesID:   m.ID,
			CommonName:  sp.CommonName,
			Status:      sp.Status,
			HasImage:    sp.ImageURL != "",
			AnchorDepth: m.AnchorDepth,
			BucketKey:   m.BucketKey,
			Lane:        m.Lane,
			Row:         m.Row,
			Top:         m.Top,
			Left:        m.Left,
		}
	}

	return &LayoutResult{
		Markers:        markers,
		MaxAnchorDepth: maxAnchor,
		TotalExtent:    depthlayout.TotalExtent(maxAnchor, s.layout),
		Ticks:          depthlayout.TickMarks(maxAnchor, s.layout.TickInterval),
		Placed:         len(markers),
		Skipped:        len(species) - len(markers),
	}, nil
}

// LayoutJSON returns the encoded layout response, cached per filter.
func (s *LayoutService) LayoutJSON(status, threat, category string) ([]byte, error) {
	key := cache.LayoutKey(status, threat, category)
	if s.cache != nil {
		if data, ok := s.cache.GetLayout(key); ok {
			return data, nil
		}
	}

	result, err := s.Layout(status, threat, category)
	if err != nil {
		return nil, fmt.Errorf("failed to compute layout: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}

	if s.cache != nil {
		s.cache.SetLayout(key, data)
	}
	return data, nil
}

// Config returns the layout geometry in use.
func (s *LayoutService) Config() depthlayout.Config {
	return s.layout
}
