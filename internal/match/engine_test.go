package match

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"swhunter/internal/storage"
)

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04:05", v)
	if err != nil {
		t.Fatalf("parse time %q: %v", v, err)
	}
	return ts
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedBroadcast(t *testing.T, store *storage.Store, freq float64, station, start, end, days string, persistence int) {
	t.Helper()
	_, err := store.SaveBroadcast(&storage.Broadcast{
		FrequencyKHz:    freq,
		StartTime:       start,
		EndTime:         end,
		DaysOfOperation: days,
		StationName:     station,
		PersistenceCode: &persistence,
	})
	if err != nil {
		t.Fatalf("seed broadcast: %v", err)
	}
}

type failingStore struct{}

func (failingStore) ActiveInRange(freqMin, freqMax float64) ([]storage.ActiveBroadcast, error) {
	return nil, errors.New("disk I/O error")
}

func TestLookup_StorageError(t *testing.T) {
	engine := NewEngine(failingStore{})
	results, err := engine.Lookup(9400)
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
	if !errors.Is(err, ErrStorage) {
		t.Errorf("error = %v, want ErrStorage", err)
	}
	if errors.Is(err, ErrEvaluation) {
		t.Error("storage failure must not report as evaluation failure")
	}
}

func TestLookup_FrequencyTolerance(t *testing.T) {
	store := openTestStore(t)
	seedBroadcast(t, store, 9400.0, "Inside", "", "", "", 1)
	seedBroadcast(t, store, 9406.0, "Outside", "", "", "", 1)

	engine := NewEngine(store)
	engine.SetClock(func() time.Time { return mustTime(t, "2026-01-05T12:00:00") })

	results, err := engine.Lookup(9395.0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].StationName != "Inside" {
		t.Errorf("StationName = %q, want Inside", results[0].StationName)
	}
}

func TestLookup_ExcludesInactive(t *testing.T) {
	store := openTestStore(t)
	seedBroadcast(t, store, 9400.0, "Ghost", "", "", "", storage.InactivePersistence)
	seedBroadcast(t, store, 9400.0, "Live", "", "", "", 1)

	engine := NewEngine(store)
	results, err := engine.Lookup(9400.0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(results) != 1 || results[0].StationName != "Live" {
		t.Fatalf("results = %+v, want only Live", results)
	}

	// The inactive row stays reachable through unfiltered search.
	found, err := store.Search(storage.SearchFilters{Station: "Ghost"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("search found %d rows, want 1", len(found))
	}
}

func TestLookup_DayAndTimeGating(t *testing.T) {
	store := openTestStore(t)
	// Monday noon is the pinned instant.
	seedBroadcast(t, store, 9400.0, "Midday Monday", "1100", "1300", "mon", 1)
	seedBroadcast(t, store, 9400.0, "Afternoon", "1400", "1500", "", 1)
	seedBroadcast(t, store, 9400.0, "Tuesdays Only", "1100", "1300", "tue", 1)
	seedBroadcast(t, store, 9400.0, "Night Owl", "2300", "0100", "", 1)

	engine := NewEngine(store)
	engine.SetClock(func() time.Time { return mustTime(t, "2026-01-05T12:00:00") })

	results, err := engine.Lookup(9400.0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	if results[0].StationName != "Midday Monday" {
		t.Errorf("StationName = %q, want Midday Monday", results[0].StationName)
	}
}

func TestLookup_MidnightWrapAroundNow(t *testing.T) {
	store := openTestStore(t)
	seedBroadcast(t, store, 6070.0, "Late Show", "2300", "0100", "", 1)

	engine := NewEngine(store)
	for _, instant := range []string{"2026-01-05T23:30:00", "2026-01-06T00:30:00"} {
		engine.SetClock(func() time.Time { return mustTime(t, instant) })
		results, err := engine.Lookup(6070.0)
		if err != nil {
			t.Fatalf("Lookup at %s: %v", instant, err)
		}
		if len(results) != 1 {
			t.Errorf("at %s got %d results, want 1", instant, len(results))
		}
	}

	engine.SetClock(func() time.Time { return mustTime(t, "2026-01-05T12:00:00") })
	results, err := engine.Lookup(6070.0)
	if err != nil {
		t.Fatalf("Lookup at noon: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("at noon got %d results, want 0", len(results))
	}
}

func TestLookup_Ordering(t *testing.T) {
	store := openTestStore(t)
	seedBroadcast(t, store, 9402.0, "B", "0600", "", "", 1)
	seedBroadcast(t, store, 9398.0, "A", "", "", "", 1)
	seedBroadcast(t, store, 9402.0, "C", "0200", "", "", 1)

	engine := NewEngine(store)
	engine.SetClock(func() time.Time { return mustTime(t, "2026-01-05T12:00:00") })

	results, err := engine.Lookup(9400.0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// Frequency ascending, then start time ascending.
	want := []string{"A", "C", "B"}
	for i, station := range want {
		if results[i].StationName != station {
			t.Errorf("results[%d] = %q, want %q", i, results[i].StationName, station)
		}
	}
}
