package api

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestJobManager() *RenderJobManager {
	return NewRenderJobManager(RenderJobManagerConfig{
		MaxConcurrent: 1,
		JobTTL:        time.Minute,
		CleanupPeriod: time.Minute,
	})
}

// waitForStatus polls until the job reaches the wanted status.
func waitForStatus(t *testing.T, jm *RenderJobManager, id string, want RenderJobStatus) RenderJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := jm.Get(id)
		if !ok {
			t.Fatalf("Job %s disappeared while waiting for status %s", id, want)
		}
		if job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("Job %s stuck in status %s, want %s", id, job.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSubmitAndComplete walks a job through the happy path
func TestSubmitAndComplete(t *testing.T) {
	jm := newTestJobManager()
	want := []byte("rendered surface bytes")
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		return want, nil
	}
	jm.Start()
	defer jm.Stop()

	job := jm.Submit(RenderJobParams{Width: 300, Palette: "twilight"})
	if job.ID == "" {
		t.Fatal("Expected a job id")
	}

	final := waitForStatus(t, jm, job.ID, JobStatusCompleted)
	if final.StartedAt == nil || final.FinishedAt == nil {
		t.Error("Expected started_at and finished_at to be set on a finished job")
	}
	if final.Params.Width != 300 || final.Params.Palette != "twilight" {
		t.Errorf("Params not preserved: %+v", final.Params)
	}
	if final.Error != "" {
		t.Errorf("Unexpected error on completed job: %q", final.Error)
	}

	data, ok := jm.Result(job.ID)
	if !ok {
		t.Fatal("Expected a result for the completed job")
	}
	if !bytes.Equal(data, want) {
		t.Errorf("Result bytes do not match executor output")
	}
}

// TestExecutorFailure verifies a failed render surfaces its error
func TestExecutorFailure(t *testing.T) {
	jm := newTestJobManager()
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		return nil, errors.New("surface render exploded")
	}
	jm.Start()
	defer jm.Stop()

	job := jm.Submit(RenderJobParams{})
	final := waitForStatus(t, jm, job.ID, JobStatusFailed)
	if final.Error != "surface render exploded" {
		t.Errorf("Expected executor error on job, got %q", final.Error)
	}
	if _, ok := jm.Result(job.ID); ok {
		t.Error("Failed job should have no result")
	}
}

// TestCancelQueuedJob cancels a job before a worker picks it up
func TestCancelQueuedJob(t *testing.T) {
	jm := newTestJobManager()

	var mu sync.Mutex
	var executed []int
	gate := make(chan struct{})
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		mu.Lock()
		executed = append(executed, params.Width)
		mu.Unlock()
		select {
		case <-gate:
		case <-ctx.Done():
		}
		return []byte("x"), nil
	}
	jm.Start()

	first := jm.Submit(RenderJobParams{Width: 1})
	waitForStatus(t, jm, first.ID, JobStatusRunning)

	// The single worker is busy, so this one waits in the queue.
	second := jm.Submit(RenderJobParams{Width: 2})
	if !jm.Cancel(second.ID) {
		t.Fatal("Expected Cancel to succeed for a queued job")
	}
	cancelled, _ := jm.Get(second.ID)
	if cancelled.Status != JobStatusCancelled {
		t.Fatalf("Expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.Error != "cancelled before start" {
		t.Errorf("Unexpected cancel reason: %q", cancelled.Error)
	}

	close(gate)
	waitForStatus(t, jm, first.ID, JobStatusCompleted)
	jm.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(executed) != 1 || executed[0] != 1 {
		t.Errorf("Cancelled job should never execute, ran: %v", executed)
	}
}

// TestCancelRunningJob cancels a job mid-render
func TestCancelRunningJob(t *testing.T) {
	jm := newTestJobManager()
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	jm.Start()
	defer jm.Stop()

	job := jm.Submit(RenderJobParams{})
	waitForStatus(t, jm, job.ID, JobStatusRunning)

	if !jm.Cancel(job.ID) {
		t.Fatal("Expected Cancel to succeed for a running job")
	}
	final := waitForStatus(t, jm, job.ID, JobStatusCancelled)
	if final.Error != "cancelled by user" {
		t.Errorf("Unexpected cancel reason: %q", final.Error)
	}
	if _, ok := jm.Result(job.ID); ok {
		t.Error("Cancelled job should have no result")
	}
}

// TestCancelFinishedJob verifies Cancel is a no-op on finished jobs
func TestCancelFinishedJob(t *testing.T) {
	jm := newTestJobManager()
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		return []byte("x"), nil
	}
	jm.Start()
	defer jm.Stop()

	job := jm.Submit(RenderJobParams{})
	waitForStatus(t, jm, job.ID, JobStatusCompleted)

	if jm.Cancel(job.ID) {
		t.Error("Cancel should report false for a completed job")
	}
	if jm.Cancel("unknown") {
		t.Error("Cancel should report false for an unknown job")
	}
}

// TestDeleteJob removes a job and its result
func TestDeleteJob(t *testing.T) {
	jm := newTestJobManager()
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		return []byte("x"), nil
	}
	jm.Start()
	defer jm.Stop()

	job := jm.Submit(RenderJobParams{})
	waitForStatus(t, jm, job.ID, JobStatusCompleted)

	if !jm.Delete(job.ID) {
		t.Fatal("Expected Delete to succeed")
	}
	if _, ok := jm.Get(job.ID); ok {
		t.Error("Deleted job still queryable")
	}
	if jm.Delete(job.ID) {
		t.Error("Second Delete should report false")
	}
}

// TestListNewestFirst verifies job list ordering
func TestListNewestFirst(t *testing.T) {
	jm := newTestJobManager()
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		return []byte("x"), nil
	}
	jm.Start()
	defer jm.Stop()

	first := jm.Submit(RenderJobParams{Width: 1})
	time.Sleep(5 * time.Millisecond)
	second := jm.Submit(RenderJobParams{Width: 2})
	waitForStatus(t, jm, first.ID, JobStatusCompleted)
	waitForStatus(t, jm, second.ID, JobStatusCompleted)

	list := jm.List()
	if len(list) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("Expected newest job first, got %s", list[0].ID)
	}
}

// TestSubmitQueueFull verifies overflow jobs fail fast instead of
// blocking the caller
func TestSubmitQueueFull(t *testing.T) {
	// No Start call, so nothing drains the queue.
	jm := newTestJobManager()

	for i := 0; i < 100; i++ {
		jm.Submit(RenderJobParams{})
	}
	overflow := jm.Submit(RenderJobParams{})
	if overflow.Status != JobStatusFailed {
		t.Fatalf("Expected overflow job to fail, got %s", overflow.Status)
	}
	if overflow.Error != "job queue is full; try again later" {
		t.Errorf("Unexpected overflow error: %q", overflow.Error)
	}
}

// TestCleanupExpiredJobs verifies finished jobs age out after the TTL
func TestCleanupExpiredJobs(t *testing.T) {
	jm := newTestJobManager()
	jm.Executor = func(ctx context.Context, params RenderJobParams) ([]byte, error) {
		return []byte("x"), nil
	}
	jm.Start()
	defer jm.Stop()

	expired := jm.Submit(RenderJobParams{Width: 1})
	fresh := jm.Submit(RenderJobParams{Width: 2})
	waitForStatus(t, jm, expired.ID, JobStatusCompleted)
	waitForStatus(t, jm, fresh.ID, JobStatusCompleted)

	jm.mu.Lock()
	if rec, ok := jm.jobs[expired.ID]; ok {
		old := time.Now().Add(-time.Hour)
		rec.job.FinishedAt = &old
	}
	jm.mu.Unlock()

	jm.cleanup()

	if _, ok := jm.Get(expired.ID); ok {
		t.Error("Expired job survived cleanup")
	}
	if _, ok := jm.Get(fresh.ID); !ok {
		t.Error("Fresh job removed by cleanup")
	}
}
