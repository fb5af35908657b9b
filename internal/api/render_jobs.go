// Package api provides HTTP handlers for the depth atlas server.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sort"
	"sync"
	"time"
)

// RenderJobStatus is the lifecycle state of a surface render job.
type RenderJobStatus string

const (
	JobStatusQueued    RenderJobStatus = "queued"
	JobStatusRunning   RenderJobStatus = "running"
	JobStatusCompleted RenderJobStatus = "completed"
	JobStatusFailed    RenderJobStatus = "failed"
	JobStatusCancelled RenderJobStatus = "cancelled"
)

// RenderJobParams selects what a job renders.
type RenderJobParams struct {
	Width     int    `json:"width,omitempty"`
	PixelSize int    `json:"pixel_size,omitempty"`
	Palette   string `json:"palette,omitempty"`
	Status    string `json:"status,omitempty"`
	Threat    string `json:"threat,omitempty"`
	Category  string `json:"category,omitempty"`
}

// RenderJob is one queued or finished surface render.
type RenderJob struct {
	ID         string          `json:"id"`
	Status     RenderJobStatus `json:"status"`
	Params     RenderJobParams `json:"params"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// RenderJobManagerConfig contains configuration for the render job
// manager.
type RenderJobManagerConfig struct {
	MaxConcurrent int           // Max concurrent renders (default 1)
	JobTTL        time.Duration // How long finished jobs stay queryable (default 30m)
	CleanupPeriod time.Duration
}

// RenderJobManager runs surface renders on a small worker pool. Jobs
// live in memory only; a restart forgets them.
type RenderJobManager struct {
	cfg      RenderJobManagerConfig
	mu       sync.Mutex
	jobs     map[string]*renderJobRecord
	running  map[string]context.CancelFunc
	queue    chan string
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	// Executor is called to run the actual surface render.
	Executor func(ctx context.Context, params RenderJobParams) ([]byte, error)
}

type renderJobRecord struct {
	job    RenderJob
	result []byte
}

// NewRenderJobManager creates a new render job manager.
func NewRenderJobManager(cfg RenderJobManagerConfig) *RenderJobManager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 30 * time.Minute
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}

	return &RenderJobManager{
		cfg:     cfg,
		jobs:    make(map[string]*renderJobRecord),
		running: make(map[string]context.CancelFunc),
		queue:   make(chan string, 100),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the worker goroutines and cleanup ticker.
func (jm *RenderJobManager) Start() {
	for i := 0; i < jm.cfg.MaxConcurrent; i++ {
		jm.wg.Add(1)
		go jm.worker()
	}
	go jm.cleaner()
}

// Stop stops all workers gracefully.
func (jm *RenderJobManager) Stop() {
	jm.stopOnce.Do(func() {
		close(jm.stopCh)
		close(jm.queue)
		jm.wg.Wait()
	})
}

func (jm *RenderJobManager) worker() {
	defer jm.wg.Done()
	for jobID := range jm.queue {
		jm.runJob(jobID)
	}
}

func (jm *RenderJobManager) runJob(jobID string) {
	jm.mu.Lock()
	rec, ok := jm.jobs[jobID]
	if !ok || rec.job.Status != JobStatusQueued {
		// Deleted or cancelled while waiting in the queue.
		jm.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	jm.running[jobID] = cancel
	started := time.Now()
	rec.job.Status = JobStatusRunning
	rec.job.StartedAt = &started
	params := rec.job.Params
	jm.mu.Unlock()

	defer func() {
		cancel()
		jm.mu.Lock()
		delete(jm.running, jobID)
		jm.mu.Unlock()
	}()

	var (
		data    []byte
		execErr error
	)
	if jm.Executor != nil {
		data, execErr = jm.Executor(ctx, params)
	}

	jm.mu.Lock()
	defer jm.mu.Unlock()
	rec, ok = jm.jobs[jobID]
	if !ok {
		return
	}
	finished := time.Now()
	rec.job.FinishedAt = &finished
	switch {
	case ctx.Err() == context.Canceled:
		rec.job.Status = JobStatusCancelled
		rec.job.Error = "cancelled by user"
	case execErr != nil:
		rec.job.Status = JobStatusFailed
		rec.job.Error = execErr.Error()
	default:
		rec.job.Status = JobStatusCompleted
		rec.result = data
	}
}

func (jm *RenderJobManager) cleaner() {
	ticker := time.NewTicker(jm.cfg.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-jm.stopCh:
			return
		case <-ticker.C:
			jm.cleanup()
		}
	}
}

func (jm *RenderJobManager) cleanup() {
	cutoff := time.Now().Add(-jm.cfg.JobTTL)

	jm.mu.Lock()
	deleted := 0
	for id, rec := range jm.jobs {
		if rec.job.FinishedAt != nil && rec.job.FinishedAt.Before(cutoff) {
			delete(jm.jobs, id)
			deleted++
		}
	}
	jm.mu.Unlock()

	if deleted > 0 {
		log.Printf("[RenderJobs] cleaned up %d expired jobs", deleted)
	}
}

// Submit creates a new job and enqueues it for execution.
func (jm *RenderJobManager) Submit(params RenderJobParams) RenderJob {
	id := generateJobID()
	rec := &renderJobRecord{job: RenderJob{
		ID:        id,
		Status:    JobStatusQueued,
		Params:    params,
		CreatedAt: time.Now(),
	}}

	jm.mu.Lock()
	jm.jobs[id] = rec
	jm.mu.Unlock()

	select {
	case jm.queue <- id:
	default:
		// Queue full; mark as failed immediately
		jm.mu.Lock()
		rec.job.Status = JobStatusFailed
		rec.job.Error = "job queue is full; try again later"
		jm.mu.Unlock()
	}

	job, _ := jm.Get(id)
	return job
}

// Get returns a copy of the job record.
func (jm *RenderJobManager) Get(id string) (RenderJob, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	rec, ok := jm.jobs[id]
	if !ok {
		return RenderJob{}, false
	}
	return rec.job, true
}

// Result returns the rendered PNG for a completed job.
func (jm *RenderJobManager) Result(id string) ([]byte, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	rec, ok := jm.jobs[id]
	if !ok || rec.job.Status != JobStatusCompleted || rec.result == nil {
		return nil, false
	}
	return rec.result, true
}

// List returns all known jobs, newest first.
func (jm *RenderJobManager) List() []RenderJob {
	jm.mu.Lock()
	out := make([]RenderJob, 0, len(jm.jobs))
	for _, rec := range jm.jobs {
		out = append(out, rec.job)
	}
	jm.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel attempts to cancel a queued or running job.
func (jm *RenderJobManager) Cancel(id string) bool {
	jm.mu.Lock()
	cancel, runningNow := jm.running[id]
	jm.mu.Unlock()

	if runningNow && cancel != nil {
		cancel()
		return true
	}

	jm.mu.Lock()
	defer jm.mu.Unlock()
	rec, ok := jm.jobs[id]
	if !ok {
		return false
	}
	if rec.job.Status == JobStatusQueued {
		rec.job.Status = JobStatusCancelled
		rec.job.Error = "cancelled before start"
		return true
	}
	return false
}

// Delete removes a job and its result.
func (jm *RenderJobManager) Delete(id string) bool {
	jm.mu.Lock()
	cancel, runningNow := jm.running[id]
	_, ok := jm.jobs[id]
	delete(jm.jobs, id)
	jm.mu.Unlock()

	if runningNow && cancel != nil {
		cancel()
	}
	return ok
}

func generateJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
