package registry

import (
	"testing"
	"time"
)

func TestStore_WriteGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	rec := &JobRecord{
		ID:           "job-1",
		DisplayName:  "contract.pdf",
		Status:       StatusAnalyzing,
		CreatedAt:    time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		PollEnabled:  true,
		PollAttempts: 3,
		KeyFindings:  []string{"clause 4 is unusual"},
	}

	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("job id mismatch: got=%q want=%q", got.ID, rec.ID)
	}
	if got.Status != rec.Status {
		t.Fatalf("status mismatch: got=%q want=%q", got.Status, rec.Status)
	}
	if got.PollAttempts != 3 {
		t.Fatalf("poll attempts not persisted: got=%d", got.PollAttempts)
	}
	if len(got.KeyFindings) != 1 || got.KeyFindings[0] != "clause 4 is unusual" {
		t.Fatalf("key findings not persisted: %v", got.KeyFindings)
	}
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	t1 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 20, 13, 0, 0, 0, time.UTC)

	if err := s.Write(&JobRecord{ID: "job-1", Status: StatusUploaded, CreatedAt: t1, PollEnabled: true}); err != nil {
		t.Fatalf("Write job-1: %v", err)
	}
	if err := s.Write(&JobRecord{ID: "job-2", Status: StatusUploaded, CreatedAt: t2, PollEnabled: true}); err != nil {
		t.Fatalf("Write job-2: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected job count: %d", len(got))
	}
	if got[0].ID != "job-2" {
		t.Fatalf("expected newest first, got[0]=%q", got[0].ID)
	}
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	if err := s.Write(&JobRecord{ID: "job-1", Status: StatusUploaded, CreatedAt: time.Now(), PollEnabled: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Remove("job-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("job-1"); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if _, err := s.Get("job-1"); err == nil {
		t.Fatalf("expected Get after Remove to fail")
	}
}

func TestStore_LoadIntoPreservesSubmissionOrder(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	t1 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 20, 13, 0, 0, 0, time.UTC)

	if err := s.Write(&JobRecord{ID: "job-old", Status: StatusAnalyzing, CreatedAt: t1, PollEnabled: true, PollAttempts: 7}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(&JobRecord{ID: "job-new", Status: StatusUploaded, CreatedAt: t2, PollEnabled: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := New()
	if err := s.LoadInto(r); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	got := r.All()
	if len(got) != 2 {
		t.Fatalf("unexpected registry size: %d", len(got))
	}
	if got[0].ID != "job-new" {
		t.Fatalf("expected newest first after load, got[0]=%q", got[0].ID)
	}
	if got[1].PollAttempts != 7 {
		t.Fatalf("attempt counter lost on resume: %d", got[1].PollAttempts)
	}
}
