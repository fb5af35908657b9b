// Package config handles configuration loading for the depth atlas server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Layout  LayoutConfig  `yaml:"layout"`
	Render  RenderConfig  `yaml:"render"`
	Imagery ImageryConfig `yaml:"imagery"`
	Cache   CacheConfig   `yaml:"cache"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	CatalogPath string `yaml:"catalog_path"`
	StaticDir   string `yaml:"static_dir"`
}

// LayoutConfig contains depth layout geometry. Depth-derived values
// are in metres, the rest in pixels.
type LayoutConfig struct {
	PixelsPerDepthUnit float64 `yaml:"pixels_per_depth_unit"`
	TopPadding         float64 `yaml:"top_padding"`
	BottomPaddingDepth float64 `yaml:"bottom_padding_depth"`
	MinimumExtent      float64 `yaml:"minimum_extent"`
	LaneCount          int     `yaml:"lane_count"`
	LaneWidth          float64 `yaml:"lane_width"`
	LeftMargin         float64 `yaml:"left_margin"`
	BucketSize         int     `yaml:"bucket_size"`
	RowGap             float64 `yaml:"row_gap"`
	TickInterval       int     `yaml:"tick_interval"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	MarkerSize    int    `yaml:"marker_size"`
	SurfaceWidth  int    `yaml:"surface_width"`
	Palette       string `yaml:"palette"`
	PixelSize     int    `yaml:"pixel_size"`
	Workers       int    `yaml:"workers"`
	JobTTLMinutes int    `yaml:"job_ttl_minutes"`
}

// ImageryConfig contains remote photo fetch settings.
type ImageryConfig struct {
	AllowedHosts   []string `yaml:"allowed_hosts"`
	CacheDir       string   `yaml:"cache_dir"`
	CacheTTLHours  int      `yaml:"cache_ttl_hours"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxBytes       int64    `yaml:"max_bytes"`
}

// CacheConfig contains in-memory caching settings.
type CacheConfig struct {
	RenderedSizeMB     int `yaml:"rendered_mb"`
	RenderedTTLMinutes int `yaml:"rendered_ttl_minutes"`
	LayoutEntries      int `yaml:"layout_entries"`
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; a present but unparsable file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			CatalogPath: "./data/species.json",
		},
		Layout: LayoutConfig{
			PixelsPerDepthUnit: 0.5,
			TopPadding:         120,
			BottomPaddingDepth: 250,
			MinimumExtent:      900,
			LaneCount:          9,
			LaneWidth:          120,
			LeftMargin:         40,
			BucketSize:         60,
			RowGap:             130,
			TickInterval:       100,
		},
		Render: RenderConfig{
			MarkerSize:    96,
			SurfaceWidth:  1200,
			Palette:       "abyss",
			PixelSize:     8,
			Workers:       1,
			JobTTLMinutes: 30,
		},
		Imagery: ImageryConfig{
			AllowedHosts:   []string{"www.fisheries.noaa.gov", "fisheries.noaa.gov"},
			CacheDir:       "./data/image-cache",
			CacheTTLHours:  168,
			TimeoutSeconds: 20,
			MaxBytes:       10 << 20,
		},
		Cache: CacheConfig{
			RenderedSizeMB:     64,
			RenderedTTLMinutes: 60,
			LayoutEntries:      128,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Data.CatalogPath == "" {
		cfg.Data.CatalogPath = defaults.Data.CatalogPath
	}
	if cfg.Layout.PixelsPerDepthUnit == 0 {
		cfg.Layout.PixelsPerDepthUnit = defaults.Layout.PixelsPerDepthUnit
	}
	if cfg.Layout.TopPadding == 0 {
		cfg.Layout.TopPadding = defaults.Layout.TopPadding
	}
	if cfg.Layout.BottomPaddingDepth == 0 {
		cfg.Layout.BottomPaddingDepth = defaults.Layout.BottomPaddingDepth
	}
	if cfg.Layout.MinimumExtent == 0 {
		cfg.Layout.MinimumExtent = defaults.Layout.MinimumExtent
	}
	if cfg.Layout.LaneCount == 0 {
		cfg.Layout.LaneCount = defaults.Layout.LaneCount
	}
	if cfg.Layout.LaneWidth == 0 {
		cfg.Layout.LaneWidth = defaults.Layout.LaneWidth
	}
	if cfg.Layout.LeftMargin == 0 {
		cfg.Layout.LeftMargin = defaults.Layout.LeftMargin
	}
	if cfg.Layout.BucketSize == 0 {
		cfg.Layout.BucketSize = defaults.Layout.BucketSize
	}
	if cfg.Layout.RowGap == 0 {
		cfg.Layout.RowGap = defaults.Layout.RowGap
	}
	if cfg.Layout.TickInterval == 0 {
		cfg.Layout.TickInterval = defaults.Layout.TickInterval
	}
	if cfg.Render.MarkerSize == 0 {
		cfg.Render.MarkerSize = defaults.Render.MarkerSize
	}
	if cfg.Render.SurfaceWidth == 0 {
		cfg.Render.SurfaceWidth = defaults.Render.SurfaceWidth
	}
	if cfg.Render.Palette == "" {
		cfg.Render.Palette = defaults.Render.Palette
	}
	if cfg.Render.PixelSize == 0 {
		cfg.Render.PixelSize = defaults.Render.PixelSize
	}
	if cfg.Render.Workers == 0 {
		cfg.Render.Workers = defaults.Render.Workers
	}
	if cfg.Render.JobTTLMinutes == 0 {
		cfg.Render.JobTTLMinutes = defaults.Render.JobTTLMinutes
	}
	if len(cfg.Imagery.AllowedHosts) == 0 {
		cfg.Imagery.AllowedHosts = defaults.Imagery.AllowedHosts
	}
	if cfg.Imagery.CacheDir == "" {
		cfg.Imagery.CacheDir = defaults.Imagery.CacheDir
	}
	if cfg.Imagery.CacheTTLHours == 0 {
		cfg.Imagery.CacheTTLHours = defaults.Imagery.CacheTTLHours
	}
	if cfg.Imagery.TimeoutSeconds == 0 {
		cfg.Imagery.TimeoutSeconds = defaults.Imagery.TimeoutSeconds
	}
	if cfg.Imagery.MaxBytes == 0 {
		cfg.Imagery.MaxBytes = defaults.Imagery.MaxBytes
	}
	if cfg.Cache.RenderedSizeMB == 0 {
		cfg.Cache.RenderedSizeMB = defaults.Cache.RenderedSizeMB
	}
	if cfg.Cache.RenderedTTLMinutes == 0 {
		cfg.Cache.RenderedTTLMinutes = defaults.Cache.RenderedTTLMinutes
	}
	if cfg.Cache.LayoutEntries == 0 {
		cfg.Cache.LayoutEntries = defaults.Cache.LayoutEntries
	}
}
