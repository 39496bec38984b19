package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"swhunter/internal/notify"
	"swhunter/internal/storage"
)

// recordingPublisher captures published events for inspection.
type recordingPublisher struct {
	spots   []notify.SpotEvent
	imports []notify.ImportEvent
}

func (p *recordingPublisher) PublishSpot(ev notify.SpotEvent) error {
	p.spots = append(p.spots, ev)
	return nil
}

func (p *recordingPublisher) PublishImport(ev notify.ImportEvent) error {
	p.imports = append(p.imports, ev)
	return nil
}

// failingPublisher rejects every event.
type failingPublisher struct{}

func (failingPublisher) PublishSpot(notify.SpotEvent) error {
	return errors.New("connection lost")
}

func (failingPublisher) PublishImport(notify.ImportEvent) error {
	return errors.New("connection lost")
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	eng, err := New(store, opts)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	// 2026-01-05 is a Monday.
	pinned := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	eng.SetClock(func() time.Time { return pinned })
	return eng
}

func writeFeed(t *testing.T, lines ...string) string {
	t.Helper()
	content := "kHz;Time(UTC);Days;ITU;Station;Lng;Target;Site;P;Start;Stop\n"
	for _, l := range lines {
		content += l + "\n"
	}
	path := filepath.Join(t.TempDir(), "feed.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	return path
}

func seedActive(t *testing.T, eng *Engine, freq float64, station string) {
	t.Helper()
	code := 1
	_, err := eng.SaveBroadcast(&storage.Broadcast{
		FrequencyKHz:    freq,
		StationName:     station,
		PersistenceCode: &code,
	}, "", "", "")
	if err != nil {
		t.Fatalf("seed broadcast: %v", err)
	}
}

func TestIngestPublishesImportEvent(t *testing.T) {
	pub := &recordingPublisher{}
	eng := newTestEngine(t, Options{Notifier: pub})

	feed := writeFeed(t,
		"9400;0000-2400;;BUL;Radio Bulgaria;Bul;Eu;SOF;1;;",
		"6070;0700-0800;mon-fri;D;Channel 292;E;Eu;ROB;2;;",
	)
	summary, err := eng.Ingest(feed, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.Imported != 2 {
		t.Errorf("imported %d rows, want 2", summary.Imported)
	}

	if len(pub.imports) != 1 {
		t.Fatalf("got %d import events, want 1", len(pub.imports))
	}
	ev := pub.imports[0]
	if ev.FeedPath != feed || !ev.Update || ev.Imported != 2 || ev.Errors != 0 {
		t.Errorf("import event = %+v", ev)
	}
}

func TestLookupActivePublishesSpotEvents(t *testing.T) {
	pub := &recordingPublisher{}
	eng := newTestEngine(t, Options{Notifier: pub})
	seedActive(t, eng, 9400, "Radio Bulgaria")

	hits, err := eng.LookupActive(9395)
	if err != nil {
		t.Fatalf("LookupActive: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}

	if len(pub.spots) != 1 {
		t.Fatalf("got %d spot events, want 1", len(pub.spots))
	}
	ev := pub.spots[0]
	if ev.TunedKHz != 9395 || ev.FrequencyKHz != 9400 || ev.Station != "Radio Bulgaria" {
		t.Errorf("spot event = %+v", ev)
	}
	if ev.Band != "31m" {
		t.Errorf("spot band = %q, want 31m", ev.Band)
	}

	// A miss publishes nothing.
	if _, err := eng.LookupActive(21000); err != nil {
		t.Fatalf("LookupActive: %v", err)
	}
	if len(pub.spots) != 1 {
		t.Errorf("miss published %d extra events", len(pub.spots)-1)
	}
}

func TestSideChannelFailureDoesNotFailOperation(t *testing.T) {
	eng := newTestEngine(t, Options{Notifier: failingPublisher{}})
	seedActive(t, eng, 9400, "Radio Bulgaria")

	// Publishing fails, the lookup still answers.
	hits, err := eng.LookupActive(9400)
	if err != nil {
		t.Fatalf("LookupActive: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}

	// Same for ingestion.
	feed := writeFeed(t, "6070;0700-0800;;D;Channel 292;E;Eu;ROB;2;;")
	summary, err := eng.Ingest(feed, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.Imported != 1 {
		t.Errorf("imported %d rows, want 1", summary.Imported)
	}
}

func TestLookupActiveWithoutSideChannels(t *testing.T) {
	eng := newTestEngine(t, Options{})
	seedActive(t, eng, 9400, "Radio Bulgaria")

	hits, err := eng.LookupActive(9400)
	if err != nil {
		t.Fatalf("LookupActive: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestRecentSpotsWithoutArchive(t *testing.T) {
	eng := newTestEngine(t, Options{})

	_, err := eng.RecentSpots(context.Background(), storage.SpotQuery{})
	if !errors.Is(err, ErrNoArchive) {
		t.Errorf("error = %v, want ErrNoArchive", err)
	}
}
