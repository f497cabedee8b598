package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent opens the same directory twice; the second open
// must not re-apply anything.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_uploads_created", "idx_results_call_flow", "idx_jobs_status_run_after"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_things.sql")
	if err != nil || v != 7 {
		t.Errorf("parseMigrationVersion = %d, %v; want 7", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered file")
	}
}

func TestUploads(t *testing.T) {
	s := openTestStore(t)

	u, err := s.CreateUpload(Upload{Filename: "trace.pcap", ContentType: "application/vnd.tcpdump.pcap", Size: 2048, StoredPath: "/tmp/x"})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Errorf("CreateUpload did not fill ID/CreatedAt: %+v", u)
	}

	if err := s.SetUploadPreview(u.ID, "first bytes"); err != nil {
		t.Fatalf("SetUploadPreview: %v", err)
	}
	if err := s.UpdateUploadDescription(u.ID, "lobby call drop"); err != nil {
		t.Fatalf("UpdateUploadDescription: %v", err)
	}

	got, err := s.GetUpload(u.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.Preview != "first bytes" || got.Description != "lobby call drop" || got.Size != 2048 {
		t.Errorf("GetUpload = %+v", got)
	}

	list, err := s.ListUploads(0)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListUploads len = %d, want 1", len(list))
	}

	deleted, err := s.DeleteUpload(u.ID)
	if err != nil {
		t.Fatalf("DeleteUpload: %v", err)
	}
	if deleted.StoredPath != "/tmp/x" {
		t.Errorf("deleted StoredPath = %q", deleted.StoredPath)
	}
	if _, err := s.GetUpload(u.ID); err != ErrNotFound {
		t.Errorf("GetUpload after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateUpload_Invalid(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateUpload(Upload{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestCallFlows(t *testing.T) {
	s := openTestStore(t)

	f, err := s.CreateCallFlow(CallFlow{
		Name:          "internal-to-internal",
		CallingNumber: "1001",
		CalledNumber:  "1002",
		Steps:         []string{"dial 1002", "answer", "hang up"},
	})
	if err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}

	got, err := s.GetCallFlow(f.ID)
	if err != nil {
		t.Fatalf("GetCallFlow: %v", err)
	}
	if len(got.Steps) != 3 || got.Steps[1] != "answer" {
		t.Errorf("Steps = %v", got.Steps)
	}

	got.ExpectedResult = "connected"
	updated, err := s.UpdateCallFlow(f.ID, got)
	if err != nil {
		t.Fatalf("UpdateCallFlow: %v", err)
	}
	if updated.ExpectedResult != "connected" {
		t.Errorf("ExpectedResult = %q", updated.ExpectedResult)
	}
	if _, err := s.UpdateCallFlow("missing", got); err != ErrNotFound {
		t.Errorf("UpdateCallFlow(missing) = %v, want ErrNotFound", err)
	}

	if err := s.DeleteCallFlow(f.ID); err != nil {
		t.Fatalf("DeleteCallFlow: %v", err)
	}
	if err := s.DeleteCallFlow(f.ID); err != ErrNotFound {
		t.Errorf("second DeleteCallFlow = %v, want ErrNotFound", err)
	}
}

func TestCallFlow_NilStepsStoredAsEmpty(t *testing.T) {
	s := openTestStore(t)

	f, err := s.CreateCallFlow(CallFlow{Name: "bare"})
	if err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}
	got, err := s.GetCallFlow(f.ID)
	if err != nil {
		t.Fatalf("GetCallFlow: %v", err)
	}
	if got.Steps == nil || len(got.Steps) != 0 {
		t.Errorf("Steps = %#v, want empty non-nil", got.Steps)
	}
}

func TestUpsertCallFlows_KeepsIDByName(t *testing.T) {
	s := openTestStore(t)

	created, err := s.UpsertCallFlows([]CallFlow{{Name: "pstn-out", CalledNumber: "9911"}})
	if err != nil || !created[0] {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	first, _ := s.GetCallFlowByName("pstn-out")

	created, err = s.UpsertCallFlows([]CallFlow{{Name: "pstn-out", CalledNumber: "9112"}})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created[0] {
		t.Error("second upsert should update, not create")
	}
	second, _ := s.GetCallFlowByName("pstn-out")
	if second.ID != first.ID {
		t.Errorf("ID changed: %q -> %q", first.ID, second.ID)
	}
	if second.CalledNumber != "9112" {
		t.Errorf("CalledNumber = %q, want 9112", second.CalledNumber)
	}

	all, err := s.ListCallFlows(0)
	if err != nil {
		t.Fatalf("ListCallFlows: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListCallFlows len = %d, want 1", len(all))
	}
}

func TestUpsertCallFlows(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateCallFlow(CallFlow{Name: "b"}); err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}

	created, err := s.UpsertCallFlows([]CallFlow{{Name: "a"}, {Name: "b", CalledNumber: "2"}})
	if err != nil {
		t.Fatalf("UpsertCallFlows: %v", err)
	}
	if len(created) != 2 || !created[0] || created[1] {
		t.Errorf("created = %v, want [true false]", created)
	}
	b, _ := s.GetCallFlowByName("b")
	if b.CalledNumber != "2" {
		t.Errorf("CalledNumber = %q, want 2", b.CalledNumber)
	}
}

func TestCallFlows_DuplicateNameIsConflict(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateCallFlow(CallFlow{Name: "pstn-out"}); err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}
	_, err := s.CreateCallFlow(CallFlow{Name: "pstn-out"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate create err = %v, want ErrConflict", err)
	}
	if strings.Contains(err.Error(), "UNIQUE") {
		t.Errorf("error leaks driver text: %v", err)
	}

	other, err := s.CreateCallFlow(CallFlow{Name: "pstn-in"})
	if err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}
	if _, err := s.UpdateCallFlow(other.ID, CallFlow{Name: "pstn-out"}); !errors.Is(err, ErrConflict) {
		t.Errorf("rename onto existing name err = %v, want ErrConflict", err)
	}
	got, _ := s.GetCallFlow(other.ID)
	if got.Name != "pstn-in" {
		t.Errorf("Name = %q after failed rename, want pstn-in", got.Name)
	}
}

func TestLocations_DuplicateIDIsConflict(t *testing.T) {
	s := openTestStore(t)

	l := Location{ID: "loc-1", Name: "HQ", SiteCode: "HQ1"}
	if _, err := s.CreateLocation(l); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if _, err := s.CreateLocation(l); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate id err = %v, want ErrConflict", err)
	}
}

func TestCMSSpaces_UpsertAndPrune(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().Add(-time.Hour)
	if err := s.UpsertCMSSpace(CMSSpace{ID: "a", Name: "Alpha", SyncedAt: old}); err != nil {
		t.Fatalf("UpsertCMSSpace a: %v", err)
	}
	if err := s.UpsertCMSSpace(CMSSpace{ID: "b", Name: "Beta", SyncedAt: old}); err != nil {
		t.Fatalf("UpsertCMSSpace b: %v", err)
	}

	syncStart := time.Now()
	if err := s.UpsertCMSSpace(CMSSpace{ID: "a", Name: "Alpha renamed", URI: "alpha"}); err != nil {
		t.Fatalf("UpsertCMSSpace a again: %v", err)
	}
	n, err := s.PruneCMSSpaces(syncStart.Add(-time.Second))
	if err != nil {
		t.Fatalf("PruneCMSSpaces: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	spaces, err := s.ListCMSSpaces(0)
	if err != nil {
		t.Fatalf("ListCMSSpaces: %v", err)
	}
	if len(spaces) != 1 || spaces[0].Name != "Alpha renamed" || spaces[0].URI != "alpha" {
		t.Errorf("spaces = %+v", spaces)
	}
}

func TestResults(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateResult(Result{CallFlowID: "f1", Outcome: "maybe"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad outcome err = %v, want ErrInvalid", err)
	}

	r1, err := s.CreateResult(Result{CallFlowID: "f1", Outcome: OutcomePass, ExecutedBy: "jdoe", ExecutedAt: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	if _, err := s.CreateResult(Result{CallFlowID: "f2", Outcome: OutcomeBlocked}); err != nil {
		t.Fatalf("CreateResult: %v", err)
	}

	forF1, err := s.ListResults("f1", 0)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(forF1) != 1 || forF1[0].ID != r1.ID {
		t.Errorf("ListResults(f1) = %+v", forF1)
	}

	if err := s.UpdateResult(r1.ID, OutcomeFail, "one-way audio"); err != nil {
		t.Fatalf("UpdateResult: %v", err)
	}
	got, err := s.GetResult(r1.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Outcome != OutcomeFail || got.Notes != "one-way audio" {
		t.Errorf("GetResult = %+v", got)
	}

	all, err := s.ListResults("", 0)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListResults len = %d, want 2", len(all))
	}
	if err := s.DeleteResult(r1.ID); err != nil {
		t.Fatalf("DeleteResult: %v", err)
	}
}

func TestLocations(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateLocation(Location{Name: "HQ", Timezone: "Mars/Olympus"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad timezone err = %v, want ErrInvalid", err)
	}

	l, err := s.CreateLocation(Location{Name: "HQ", SiteCode: "HQ1", Timezone: "Europe/Berlin", DevicePool: "DP_HQ"})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}

	l.Address = "Main St 1"
	updated, err := s.UpdateLocation(l.ID, l)
	if err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if updated.Address != "Main St 1" || updated.DevicePool != "DP_HQ" {
		t.Errorf("UpdateLocation = %+v", updated)
	}

	list, err := s.ListLocations(10)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListLocations len = %d", len(list))
	}

	if err := s.DeleteLocation(l.ID); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}
	if _, err := s.GetLocation(l.ID); err != ErrNotFound {
		t.Errorf("GetLocation after delete = %v, want ErrNotFound", err)
	}
}
