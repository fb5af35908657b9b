// Package main is the entry point for the depth atlas server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/endangered-ocean/server/internal/api"
	"github.com/endangered-ocean/server/internal/cache"
	"github.com/endangered-ocean/server/internal/catalog"
	"github.com/endangered-ocean/server/internal/config"
	"github.com/endangered-ocean/server/internal/imagery"
	"github.com/endangered-ocean/server/internal/render"
	"github.com/endangered-ocean/server/internal/service"
	"github.com/endangered-ocean/server/pkg/depthlayout"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "Override the configured listen port")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log.Printf("Starting depth atlas server on port %d", cfg.Server.Port)

	// Load the species catalog snapshot
	store, err := catalog.Load(cfg.Data.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("[Catalog] Loaded %d species, %d threats from %s",
		store.NumSpecies(), store.NumThreats(), cfg.Data.CatalogPath)

	// Initialize the imagery client
	imageryClient, err := imagery.NewClient(imagery.Config{
		AllowedHosts: cfg.Imagery.AllowedHosts,
		CacheDir:     cfg.Imagery.CacheDir,
		CacheTTL:     time.Duration(cfg.Imagery.CacheTTLHours) * time.Hour,
		Timeout:      time.Duration(cfg.Imagery.TimeoutSeconds) * time.Second,
		MaxBytes:     cfg.Imagery.MaxBytes,
	})
	if err != nil {
		log.Fatalf("Failed to initialize imagery client: %v", err)
	}

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		RenderedSizeMB: cfg.Cache.RenderedSizeMB,
		RenderedTTL:    time.Duration(cfg.Cache.RenderedTTLMinutes) * time.Minute,
		LayoutEntries:  cfg.Cache.LayoutEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	// Initialize the surface renderer
	renderer := render.NewSurfaceRenderer(render.Config{
		SurfaceWidth:   cfg.Render.SurfaceWidth,
		MarkerSize:     cfg.Render.MarkerSize,
		DefaultPalette: cfg.Render.Palette,
	})

	// Initialize services
	layoutService := service.NewLayoutService(service.LayoutServiceConfig{
		Store: store,
		Cache: cacheManager,
		Layout: depthlayout.Config{
			PixelsPerDepthUnit: cfg.Layout.PixelsPerDepthUnit,
			TopPadding:         cfg.Layout.TopPadding,
			BottomPaddingDepth: cfg.Layout.BottomPaddingDepth,
			MinimumExtent:      cfg.Layout.MinimumExtent,
			LaneCount:          cfg.Layout.LaneCount,
			LaneWidth:          cfg.Layout.LaneWidth,
			LeftMargin:         cfg.Layout.LeftMargin,
			BucketSize:         cfg.Layout.BucketSize,
			RowGap:             cfg.Layout.RowGap,
			TickInterval:       cfg.Layout.TickInterval,
		},
	})

	markerService := service.NewMarkerService(service.MarkerServiceConfig{
		Store:     store,
		Fetcher:   imageryClient,
		Renderer:  renderer,
		Cache:     cacheManager,
		Layout:    layoutService,
		PixelSize: cfg.Render.PixelSize,
	})

	// Initialize render job manager and wire the surface build as its
	// executor. A superseded build still returns a valid render to the
	// job that asked for it.
	jobManager := api.NewRenderJobManager(api.RenderJobManagerConfig{
		MaxConcurrent: cfg.Render.Workers,
		JobTTL:        time.Duration(cfg.Render.JobTTLMinutes) * time.Minute,
		CleanupPeriod: 5 * time.Minute,
	})
	jobManager.Executor = func(ctx context.Context, params api.RenderJobParams) ([]byte, error) {
		data, err := markerService.BuildSurface(ctx, service.SurfaceOptions{
			Width:     params.Width,
			PixelSize: params.PixelSize,
			Palette:   params.Palette,
			Status:    params.Status,
			Threat:    params.Threat,
			Category:  params.Category,
		})
		if errors.Is(err, service.ErrSuperseded) {
			return data, nil
		}
		return data, err
	}
	log.Printf("Render job manager: workers=%d, job_ttl=%dm",
		cfg.Render.Workers, cfg.Render.JobTTLMinutes)

	jobManager.Start()
	defer jobManager.Stop()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Store:       store,
		Layout:      layoutService,
		Markers:     markerService,
		Imagery:     imageryClient,
		Jobs:        jobManager,
		Cache:       cacheManager,
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   cfg.Data.StaticDir,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	cacheManager.Close()
	log.Println("Server stopped")
}
