package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Overrides(t *testing.T) {
	content := `
server:
  port: 9000
  cors_origins: ["https://atlas.example.org"]
data:
  catalog_path: "/srv/atlas/species.db"
layout:
  pixels_per_depth_unit: 0.25
  lane_count: 5
render:
  surface_width: 1600
  palette: twilight
imagery:
  allowed_hosts: ["images.example.org"]
cache:
  rendered_mb: 128
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://atlas.example.org" {
		t.Errorf("unexpected cors_origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Data.CatalogPath != "/srv/atlas/species.db" {
		t.Errorf("unexpected catalog_path: %s", cfg.Data.CatalogPath)
	}
	if cfg.Layout.PixelsPerDepthUnit != 0.25 {
		t.Errorf("expected pixels_per_depth_unit 0.25, got %v", cfg.Layout.PixelsPerDepthUnit)
	}
	if cfg.Layout.LaneCount != 5 {
		t.Errorf("expected lane_count 5, got %d", cfg.Layout.LaneCount)
	}
	if cfg.Render.SurfaceWidth != 1600 {
		t.Errorf("expected surface_width 1600, got %d", cfg.Render.SurfaceWidth)
	}
	if cfg.Render.Palette != "twilight" {
		t.Errorf("expected palette twilight, got %q", cfg.Render.Palette)
	}
	if len(cfg.Imagery.AllowedHosts) != 1 || cfg.Imagery.AllowedHosts[0] != "images.example.org" {
		t.Errorf("unexpected allowed_hosts: %v", cfg.Imagery.AllowedHosts)
	}
	if cfg.Cache.RenderedSizeMB != 128 {
		t.Errorf("expected rendered_mb 128, got %d", cfg.Cache.RenderedSizeMB)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 9000
layout:
  lane_count: 5
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Layout.LaneCount != 5 {
		t.Errorf("expected lane_count 5, got %d", cfg.Layout.LaneCount)
	}

	// Everything not set falls back to the defaults.
	if cfg.Layout.BucketSize != 60 {
		t.Errorf("expected default bucket_size 60, got %d", cfg.Layout.BucketSize)
	}
	if cfg.Layout.TickInterval != 100 {
		t.Errorf("expected default tick_interval 100, got %d", cfg.Layout.TickInterval)
	}
	if cfg.Render.MarkerSize != 96 {
		t.Errorf("expected default marker_size 96, got %d", cfg.Render.MarkerSize)
	}
	if cfg.Render.Palette != "abyss" {
		t.Errorf("expected default palette abyss, got %q", cfg.Render.Palette)
	}
	if len(cfg.Imagery.AllowedHosts) != 2 {
		t.Errorf("expected default allowed_hosts, got %v", cfg.Imagery.AllowedHosts)
	}
	if cfg.Cache.RenderedSizeMB != 64 {
		t.Errorf("expected default rendered_mb 64, got %d", cfg.Cache.RenderedSizeMB)
	}
	if cfg.Data.CatalogPath == "" {
		t.Error("expected default catalog_path")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for a missing file, got error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Server.Port != defaults.Server.Port {
		t.Errorf("expected default port %d, got %d", defaults.Server.Port, cfg.Server.Port)
	}
	if cfg.Layout.LaneCount != defaults.Layout.LaneCount {
		t.Errorf("expected default lane_count %d, got %d", defaults.Layout.LaneCount, cfg.Layout.LaneCount)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not: a: mapping"), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
