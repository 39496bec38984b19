package bands

import (
	"path/filepath"
	"testing"

	"swhunter/internal/storage"
)

func openTable(t *testing.T) (*storage.Store, *Table) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	table, err := Load(store)
	if err != nil {
		t.Fatalf("load bands: %v", err)
	}
	return store, table
}

func TestClassify(t *testing.T) {
	_, table := openTable(t)

	tests := []struct {
		freq float64
		want string
	}{
		{6070, "49m"},
		{9400, "31m"}, // inclusive lower edge
		{9900, "31m"}, // inclusive upper edge
		{15770, "19m"},
		{810, "MW"},
		{8000, Unclassified},
	}
	for _, tt := range tests {
		if got := table.Classify(tt.freq); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.freq, got, tt.want)
		}
	}
}

func TestCenter(t *testing.T) {
	_, table := openTable(t)

	if got := table.Center("49m"); got != 6050 {
		t.Errorf("Center(49m) = %v, want 6050", got)
	}
	if got := table.Center("nope"); got != DefaultCenterKHz {
		t.Errorf("Center(nope) = %v, want %v", got, DefaultCenterKHz)
	}
}

func TestReload(t *testing.T) {
	store, table := openTable(t)

	if got := table.Classify(2182); got != Unclassified {
		t.Fatalf("Classify(2182) = %q before insert, want %q", got, Unclassified)
	}

	// A band added behind the table's back is invisible until Reload.
	if err := store.AddBand(storage.Band{Name: "marine", FreqStart: 2170, FreqEnd: 2194}); err != nil {
		t.Fatalf("insert band: %v", err)
	}
	if got := table.Classify(2182); got != Unclassified {
		t.Errorf("Classify(2182) = %q before reload, want %q", got, Unclassified)
	}

	if err := table.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := table.Classify(2182); got != "marine" {
		t.Errorf("Classify(2182) = %q after reload, want marine", got)
	}
}
