// Package ingest runs background jobs from the SQLite job queue: mirroring
// CMS coSpaces and building upload previews.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/ucportal/internal/cms"
	"github.com/kalambet/ucportal/internal/storage"
)

// Job types handled by Worker.
const (
	JobCMSSync       = "cms_sync"
	JobUploadPreview = "upload_preview"
)

// ErrCMSNotConfigured fails cms_sync jobs when no CMS host is set.
var ErrCMSNotConfigured = errors.New("cms is not configured")

// JobStore abstracts the queue and the tables the jobs write to.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetUpload(id string) (storage.Upload, error)
	SetUploadPreview(id, preview string) error
	UpsertCMSSpace(sp storage.CMSSpace) error
	PruneCMSSpaces(before time.Time) (int64, error)
}

// SpaceLister pages through CMS coSpaces.
type SpaceLister interface {
	AllCoSpaces(ctx context.Context, filter string) ([]cms.CoSpace, error)
}

// Worker processes cms_sync and upload_preview jobs.
type Worker struct {
	store  JobStore
	spaces SpaceLister
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. spaces may be nil when CMS is not configured.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, spaces SpaceLister, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		spaces: spaces,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. It returns true if a job was
// processed, whether or not it succeeded.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobCMSSync, JobUploadPreview})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("job completed", "job_id", job.ID, "type", job.Type, "duration", time.Since(start))
	return true, nil
}

// CMSSyncPayload is the payload of a cms_sync job.
type CMSSyncPayload struct {
	Filter string `json:"filter,omitempty"`
	// Prune removes local spaces the sync did not see. Ignored when Filter
	// is set, since a filtered listing is not the full set.
	Prune bool `json:"prune,omitempty"`
}

// PreviewPayload is the payload of an upload_preview job.
type PreviewPayload struct {
	UploadID string `json:"upload_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case JobCMSSync:
		var p CMSSyncPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.syncSpaces(ctx, p)
	case JobUploadPreview:
		var p PreviewPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.buildPreview(p)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (w *Worker) syncSpaces(ctx context.Context, p CMSSyncPayload) error {
	if w.spaces == nil {
		return ErrCMSNotConfigured
	}
	started := time.Now().Add(-time.Second)

	spaces, err := w.spaces.AllCoSpaces(ctx, p.Filter)
	if err != nil {
		return fmt.Errorf("listing coSpaces: %w", err)
	}

	now := time.Now()
	for _, sp := range spaces {
		err := w.store.UpsertCMSSpace(storage.CMSSpace{
			ID:       sp.ID,
			Name:     sp.Name,
			URI:      sp.URI,
			CallID:   sp.CallID,
			Passcode: sp.Passcode,
			OwnerJID: sp.OwnerJID,
			SyncedAt: now,
		})
		if err != nil {
			return fmt.Errorf("saving coSpace %s: %w", sp.ID, err)
		}
	}

	var pruned int64
	if p.Prune && p.Filter == "" {
		if pruned, err = w.store.PruneCMSSpaces(started); err != nil {
			return fmt.Errorf("pruning coSpaces: %w", err)
		}
	}
	w.logger.Info("cms spaces synced", "count", len(spaces), "pruned", pruned, "filter", p.Filter)
	return nil
}

func (w *Worker) buildPreview(p PreviewPayload) error {
	u, err := w.store.GetUpload(p.UploadID)
	if err != nil {
		return fmt.Errorf("loading upload %s: %w", p.UploadID, err)
	}
	preview, err := Preview(u.StoredPath, u.ContentType)
	if err != nil {
		return fmt.Errorf("previewing %s: %w", u.Filename, err)
	}
	if err := w.store.SetUploadPreview(u.ID, preview); err != nil {
		return fmt.Errorf("saving preview: %w", err)
	}
	return nil
}
