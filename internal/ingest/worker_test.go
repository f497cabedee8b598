package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/ucportal/internal/cms"
	"github.com/kalambet/ucportal/internal/storage"
)

type mockSpaces struct {
	calls  atomic.Int32
	listFn func(ctx context.Context, filter string) ([]cms.CoSpace, error)
}

func (m *mockSpaces) AllCoSpaces(ctx context.Context, filter string) ([]cms.CoSpace, error) {
	m.calls.Add(1)
	return m.listFn(ctx, filter)
}

func fixedSpaces(spaces ...cms.CoSpace) *mockSpaces {
	return &mockSpaces{listFn: func(context.Context, string) ([]cms.CoSpace, error) { return spaces, nil }}
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueue(t *testing.T, store *storage.Store, id, typ string, payload any) {
	t.Helper()
	b, _ := json.Marshal(payload)
	if _, err := store.EnqueueJob(storage.Job{ID: id, Type: typ, PayloadJSON: string(b)}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
}

// resetRunAfter makes a job claimable immediately after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store, jobID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE id = ?`, now, jobID); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store, id string) (string, int) {
	t.Helper()
	j, err := store.GetJob(id)
	if err != nil {
		t.Fatalf("GetJob %s: %v", id, err)
	}
	return j.Status, j.Attempts
}

func TestWorker_SyncsSpaces(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-sync", JobCMSSync, CMSSyncPayload{})

	w := NewWorker(store, fixedSpaces(
		cms.CoSpace{ID: "a1", Name: "Team A", URI: "team.a", CallID: "100"},
		cms.CoSpace{ID: "b2", Name: "Team B"},
	), 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	spaces, err := store.ListCMSSpaces(0)
	if err != nil {
		t.Fatalf("ListCMSSpaces: %v", err)
	}
	if len(spaces) != 2 {
		t.Fatalf("spaces = %d, want 2", len(spaces))
	}
	if spaces[0].ID != "a1" || spaces[0].CallID != "100" {
		t.Errorf("spaces[0] = %+v", spaces[0])
	}
	if status, _ := jobStatus(t, store, "job-sync"); status != storage.JobCompleted {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestWorker_SyncPrunesStaleSpaces(t *testing.T) {
	store := openTestStore(t)
	if err := store.UpsertCMSSpace(storage.CMSSpace{ID: "gone", Name: "Old", SyncedAt: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("UpsertCMSSpace: %v", err)
	}
	enqueue(t, store, "job-prune", JobCMSSync, CMSSyncPayload{Prune: true})

	w := NewWorker(store, fixedSpaces(cms.CoSpace{ID: "kept", Name: "Kept"}), 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, err := store.GetCMSSpace("gone"); err != storage.ErrNotFound {
		t.Errorf("stale space still present: %v", err)
	}
	if _, err := store.GetCMSSpace("kept"); err != nil {
		t.Errorf("GetCMSSpace(kept): %v", err)
	}
}

func TestWorker_SyncWithoutCMSFails(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-nocms", JobCMSSync, CMSSyncPayload{})

	w := NewWorker(store, nil, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	j, err := store.GetJob("job-nocms")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Attempts != 1 || !strings.Contains(j.LastError, "not configured") {
		t.Errorf("job = %+v", j)
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-r", JobCMSSync, CMSSyncPayload{})

	spaces := &mockSpaces{}
	spaces.listFn = func(context.Context, string) ([]cms.CoSpace, error) {
		if spaces.calls.Load() <= 2 {
			return nil, fmt.Errorf("transient error %d", spaces.calls.Load())
		}
		return []cms.CoSpace{{ID: "x", Name: "X"}}, nil
	}
	w := NewWorker(store, spaces, 0)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		status, attempts := jobStatus(t, store, "job-r")
		if status != storage.JobPending || attempts != i {
			t.Errorf("after fail %d: status=%q attempts=%d", i, status, attempts)
		}
		resetRunAfter(t, store, "job-r")
	}

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 3 error: %v", err)
	}
	if status, _ := jobStatus(t, store, "job-r"); status != storage.JobCompleted {
		t.Errorf("after 3rd attempt: status=%q, want completed", status)
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-m", JobCMSSync, CMSSyncPayload{})

	w := NewWorker(store, &mockSpaces{listFn: func(context.Context, string) ([]cms.CoSpace, error) {
		return nil, errors.New("permanent error")
	}}, 0)

	for i := 1; i <= 3; i++ {
		didWork, err := w.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 3 {
			resetRunAfter(t, store, "job-m")
		}
	}

	if status, _ := jobStatus(t, store, "job-m"); status != storage.JobFailed {
		t.Errorf("final status = %q, want %q", status, storage.JobFailed)
	}
}

func TestWorker_UploadPreview(t *testing.T) {
	store := openTestStore(t)
	path := filepath.Join(t.TempDir(), "trace.txt")
	if err := os.WriteFile(path, []byte("INVITE sip:1002@cucm SIP/2.0\r\nVia: SIP/2.0/TCP 10.0.0.5\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	u, err := store.CreateUpload(storage.Upload{Filename: "trace.txt", ContentType: "text/plain", StoredPath: path})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	enqueue(t, store, "job-prev", JobUploadPreview, PreviewPayload{UploadID: u.ID})

	w := NewWorker(store, nil, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	got, err := store.GetUpload(u.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if !strings.HasPrefix(got.Preview, "INVITE sip:1002@cucm") {
		t.Errorf("Preview = %q", got.Preview)
	}
}

func TestWorker_UnknownUploadFails(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-missing", JobUploadPreview, PreviewPayload{UploadID: "nope"})

	w := NewWorker(store, nil, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if _, attempts := jobStatus(t, store, "job-missing"); attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	w := NewWorker(openTestStore(t), nil, 0)
	didWork, err := w.RunOnce(context.Background())
	if err != nil || didWork {
		t.Errorf("RunOnce = %v, %v; want false, nil", didWork, err)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, fixedSpaces(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	enqueue(t, store, "job-run", JobCMSSync, CMSSyncPayload{})
	deadline := time.After(5 * time.Second)
	for {
		if status, _ := jobStatus(t, store, "job-run"); status == storage.JobCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job not processed by Run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWorker_ConcurrentEnqueue(t *testing.T) {
	store := openTestStore(t)

	const goroutines = 5
	const jobsPerGoroutine = 10
	const total = goroutines * jobsPerGoroutine

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < jobsPerGoroutine; j++ {
				b, _ := json.Marshal(CMSSyncPayload{Filter: fmt.Sprintf("f-%d-%d", g, j)})
				if _, err := store.EnqueueJob(storage.Job{Type: JobCMSSync, PayloadJSON: string(b)}); err != nil {
					t.Errorf("EnqueueJob: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	var mu sync.Mutex
	filters := map[string]bool{}
	w := NewWorker(store, &mockSpaces{listFn: func(_ context.Context, filter string) ([]cms.CoSpace, error) {
		mu.Lock()
		filters[filter] = true
		mu.Unlock()
		return []cms.CoSpace{{ID: filter, Name: filter}}, nil
	}}, 0)

	deadline := time.After(5 * time.Second)
	processed := 0
	for processed < total {
		select {
		case <-deadline:
			t.Fatalf("timed out after processing %d/%d jobs", processed, total)
		default:
		}
		didWork, err := w.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce error at job %d: %v", processed, err)
		}
		if didWork {
			processed++
		}
	}

	if len(filters) != total {
		t.Errorf("saw %d distinct filters, want %d", len(filters), total)
	}
	spaces, err := store.ListCMSSpaces(0)
	if err != nil {
		t.Fatalf("ListCMSSpaces: %v", err)
	}
	if len(spaces) != total {
		t.Errorf("spaces = %d, want %d", len(spaces), total)
	}
}
