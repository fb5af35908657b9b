package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/endangered-ocean/server/internal/cache"
	"github.com/endangered-ocean/server/internal/catalog"
	"github.com/endangered-ocean/server/internal/imagery"
	"github.com/endangered-ocean/server/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Store       *catalog.Store
	Layout      *service.LayoutService
	Markers     *service.MarkerService
	Imagery     *imagery.Client
	Jobs        *RenderJobManager
	Cache       *cache.Manager
	CORSOrigins []string
	StaticDir   string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHealthHandler())
		r.Get("/species", speciesListHandler(cfg.Store))
		r.Get("/species/{id}", speciesDetailHandler(cfg.Store))
		r.Get("/threats", threatsHandler(cfg.Store))
		r.Get("/categories", categoriesHandler())
		r.Get("/layout", layoutHandler(cfg.Layout))
		r.Get("/markers/{id}/image", markerImageHandler(cfg.Markers))
		r.Get("/image", imageProxyHandler(cfg.Imagery))
		r.Get("/surface", surfaceHandler(cfg.Markers))
		r.Get("/stats", statsHandler(cfg.Store, cfg.Cache))

		r.Route("/renders", func(r chi.Router) {
			r.Post("/", renderJobSubmitHandler(cfg.Jobs))
			r.Get("/", renderJobListHandler(cfg.Jobs))
			r.Get("/{job_id}", renderJobStatusHandler(cfg.Jobs))
			r.Get("/{job_id}/image", renderJobImageHandler(cfg.Jobs))
			r.Delete("/{job_id}", renderJobCancelHandler(cfg.Jobs))
		})
	})

	// Optional built frontend
	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}

func apiHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}
}

// speciesListHandler returns the filtered species list, ordered by
// common name.
func speciesListHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := catalog.Filter{
			Status:   strings.TrimSpace(q.Get("status")),
			Threat:   q.Get("threat"),
			Category: strings.TrimSpace(q.Get("category")),
			Limit:    parseIntParam(q.Get("limit"), catalog.DefaultLimit, 1, catalog.MaxLimit),
			Offset:   parseIntParam(q.Get("offset"), 0, 0, 1<<30),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(store.Species(f))
	}
}

func speciesDetailHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid species id", http.StatusBadRequest)
			return
		}

		sp, ok := store.SpeciesByID(id)
		if !ok {
			http.Error(w, "species not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sp)
	}
}

func threatsHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(store.Threats())
	}
}

func categoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"categories": catalog.Categories(),
		})
	}
}

func layoutHandler(svc *service.LayoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data, err := svc.LayoutJSON(
			strings.TrimSpace(q.Get("status")),
			q.Get("threat"),
			strings.TrimSpace(q.Get("category")),
		)
		if err != nil {
			http.Error(w, "failed to compute layout: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func markerImageHandler(markers *service.MarkerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid species id", http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		width := parseDimension(q.Get("w"), 512)
		height := parseDimension(q.Get("h"), 512)
		pixelSize := parseDimension(q.Get("pixel_size"), 64)

		data, source, err := markers.MarkerPNG(r.Context(), id, width, height, pixelSize)
		if err != nil {
			if errors.Is(err, service.ErrSpeciesNotFound) {
				http.Error(w, "species not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to render marker: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("X-Marker-Source", source)
		w.Write(data)
	}
}

// imageProxyHandler fetches an allowlisted remote photo and replays it
// with long-lived caching headers.
func imageProxyHandler(client *imagery.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawURL := r.URL.Query().Get("url")

		safe, err := client.ValidateURL(rawURL)
		if err != nil {
			switch {
			case errors.Is(err, imagery.ErrMissingURL):
				http.Error(w, "missing url", http.StatusBadRequest)
			case errors.Is(err, imagery.ErrInvalidScheme):
				http.Error(w, "invalid url scheme", http.StatusBadRequest)
			case errors.Is(err, imagery.ErrHostNotAllowed):
				http.Error(w, "host not allowed", http.StatusBadRequest)
			default:
				http.Error(w, "invalid url", http.StatusBadRequest)
			}
			return
		}

		etag := `W/"` + imagery.CacheKey(safe) + `"`
		if match := r.Header.Get("If-None-Match"); match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		data, ctype, fromCache, err := client.FetchBytes(r.Context(), safe)
		if err != nil {
			var status imagery.StatusError
			switch {
			case errors.Is(err, imagery.ErrNotAnImage):
				http.Error(w, "remote content was not an image", http.StatusBadGateway)
			case errors.Is(err, imagery.ErrTooLarge):
				http.Error(w, "remote image too large", http.StatusBadGateway)
			case errors.As(err, &status):
				http.Error(w, status.Error(), http.StatusBadGateway)
			default:
				http.Error(w, "failed to fetch remote image", http.StatusBadGateway)
			}
			return
		}

		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
		w.Header().Set("ETag", etag)
		if fromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.Write(data)
	}
}

func surfaceHandler(markers *service.MarkerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := service.SurfaceOptions{
			Width:     parseDimension(q.Get("w"), 4096),
			PixelSize: parseDimension(q.Get("pixel_size"), 64),
			Palette:   strings.TrimSpace(q.Get("palette")),
			Status:    strings.TrimSpace(q.Get("status")),
			Threat:    q.Get("threat"),
			Category:  strings.TrimSpace(q.Get("category")),
		}

		data, err := markers.Surface(r.Context(), opts)
		if err != nil {
			http.Error(w, "failed to render surface: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Write(data)
	}
}

func statsHandler(store *catalog.Store, mgr *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"species": store.NumSpecies(),
			"threats": store.NumThreats(),
		}
		if mgr != nil {
			response["cache"] = mgr.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

type renderJobSubmitRequest struct {
	Width     int    `json:"width"`
	PixelSize int    `json:"pixel_size"`
	Palette   string `json:"palette"`
	Status    string `json:"status"`
	Threat    string `json:"threat"`
	Category  string `json:"category"`
}

func renderJobSubmitHandler(jm *RenderJobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "render job manager not configured", http.StatusNotImplemented)
			return
		}

		// An empty body means "render the defaults".
		var req renderJobSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		if req.Width < 0 {
			req.Width = 0
		}
		if req.Width > 4096 {
			req.Width = 4096
		}
		if req.PixelSize < 0 {
			req.PixelSize = 0
		}
		if req.PixelSize > 64 {
			req.PixelSize = 64
		}

		job := jm.Submit(RenderJobParams{
			Width:     req.Width,
			PixelSize: req.PixelSize,
			Palette:   strings.TrimSpace(req.Palette),
			Status:    strings.TrimSpace(req.Status),
			Threat:    req.Threat,
			Category:  strings.TrimSpace(req.Category),
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

func renderJobListHandler(jm *RenderJobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "render job manager not configured", http.StatusNotImplemented)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jobs": jm.List(),
		})
	}
}

func renderJobStatusHandler(jm *RenderJobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "render job manager not configured", http.StatusNotImplemented)
			return
		}

		job, ok := jm.Get(chi.URLParam(r, "job_id"))
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":      job.ID,
			"status":      job.Status,
			"params":      job.Params,
			"created_at":  job.CreatedAt,
			"started_at":  job.StartedAt,
			"finished_at": job.FinishedAt,
			"error":       job.Error,
		})
	}
}

func renderJobImageHandler(jm *RenderJobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "render job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job, ok := jm.Get(jobID)
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if job.Status != JobStatusCompleted {
			http.Error(w, "job not completed (status: "+string(job.Status)+")", http.StatusBadRequest)
			return
		}

		data, ok := jm.Result(jobID)
		if !ok {
			http.Error(w, "render result not available", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
	}
}

func renderJobCancelHandler(jm *RenderJobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "render job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		if _, ok := jm.Get(jobID); !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		cancelled := jm.Cancel(jobID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":    jobID,
			"cancelled": cancelled,
		})
	}
}

// parseIntParam parses a bounded integer query parameter, falling back
// to def when absent or malformed.
func parseIntParam(raw string, def, min, max int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

// parseDimension returns 0 when the parameter is absent or unusable so
// the service default applies.
func parseDimension(raw string, max int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0
	}
	if v > max {
		v = max
	}
	return v
}
