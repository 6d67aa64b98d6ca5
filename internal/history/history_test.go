package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openStore(t)

	now := time.Now()
	records := []Record{
		{ExpertID: 1, Operation: "launch", Branch: "feat-a", Outcome: OutcomeOK, Started: now.Add(-2 * time.Minute), Finished: now.Add(-time.Minute)},
		{ExpertID: 2, Operation: "launch", Branch: "feat-b", Outcome: OutcomeNotReady, Detail: "readiness window expired", Started: now.Add(-time.Minute), Finished: now},
		{ExpertID: 1, Operation: "kill", Outcome: OutcomeOK, Started: now, Finished: now},
	}
	for _, r := range records {
		if err := store.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}

	// Newest first.
	if recent[0].Operation != "kill" {
		t.Errorf("first record = %q, want kill", recent[0].Operation)
	}
	if recent[1].Outcome != OutcomeNotReady || recent[1].Detail != "readiness window expired" {
		t.Errorf("not-ready record mangled: %+v", recent[1])
	}
	if recent[2].Branch != "feat-a" {
		t.Errorf("branch not persisted: %+v", recent[2])
	}
}

func TestRecentLimit(t *testing.T) {
	store := openStore(t)
	for i := 0; i < 5; i++ {
		if err := store.Append(Record{ExpertID: i, Operation: "launch", Outcome: OutcomeOK, Started: time.Now(), Finished: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := store.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 records, got %d", len(recent))
	}
}

func TestForExpert(t *testing.T) {
	store := openStore(t)
	for _, id := range []int{1, 2, 1} {
		if err := store.Append(Record{ExpertID: id, Operation: "launch", Outcome: OutcomeOK, Started: time.Now(), Finished: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.ForExpert(1, 10)
	if err != nil {
		t.Fatalf("ForExpert: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records for expert 1, got %d", len(records))
	}
	for _, r := range records {
		if r.ExpertID != 1 {
			t.Errorf("foreign record leaked in: %+v", r)
		}
	}
}

func TestRecentEmptyStore(t *testing.T) {
	store := openStore(t)
	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected no records, got %d", len(recent))
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	store := openStore(t)
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	finished := started.Add(45 * time.Second)
	if err := store.Append(Record{ExpertID: 1, Operation: "relocate", Outcome: OutcomeOK, Started: started, Finished: finished}); err != nil {
		t.Fatal(err)
	}

	recent, err := store.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if !recent[0].Started.Equal(started) || !recent[0].Finished.Equal(finished) {
		t.Errorf("timestamps mangled: %+v", recent[0])
	}
}
