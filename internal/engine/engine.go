// Package engine ties the schedule store, band table, matching engine
// and optional side channels into the surface consumed by the CLI and
// HTTP layers.
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"swhunter/internal/bands"
	"swhunter/internal/ingest"
	"swhunter/internal/match"
	"swhunter/internal/notify"
	"swhunter/internal/storage"
)

// sideChannelTimeout bounds archive writes so a slow ClickHouse cannot
// stall an interactive lookup.
const sideChannelTimeout = 5 * time.Second

// ErrNoArchive is returned by archive-backed queries when no reception
// archive is configured.
var ErrNoArchive = errors.New("reception archive not configured")

// EventPublisher publishes engine events to downstream monitoring tools.
// notify.Publisher is the production implementation.
type EventPublisher interface {
	PublishSpot(ev notify.SpotEvent) error
	PublishImport(ev notify.ImportEvent) error
}

// Options carries the optional side channels. Both may be nil; the
// engine is fully functional with just the SQLite store.
type Options struct {
	Archive  *storage.Archive
	Notifier EventPublisher
}

// Engine is the schedule engine entry-point surface. Lookups and
// searches are read-only and safe to run concurrently with each other,
// but not with an in-progress ingestion run.
type Engine struct {
	store    *storage.Store
	bands    *bands.Table
	matcher  *match.Engine
	importer *ingest.Importer
	archive  *storage.Archive
	notifier EventPublisher
}

// New builds an engine over an open store. The band table is loaded once
// here and reused until ReloadBands.
func New(store *storage.Store, opts Options) (*Engine, error) {
	table, err := bands.Load(store)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    store,
		bands:    table,
		matcher:  match.NewEngine(store),
		importer: ingest.New(store),
		archive:  opts.Archive,
		notifier: opts.Notifier,
	}, nil
}

// SetClock overrides the matching clock. Tests pin "now" with it.
func (e *Engine) SetClock(now func() time.Time) {
	e.matcher.SetClock(now)
}

// Ingest imports the feed at feedPath; see ingest.Importer.Run for the
// update semantics. Side-channel reporting failures are logged, never
// surfaced: the import itself already succeeded.
func (e *Engine) Ingest(feedPath string, update bool) (*ingest.Summary, error) {
	summary, err := e.importer.Run(feedPath, update)
	if err != nil {
		return summary, err
	}

	if e.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
		if err := e.archive.RecordImportRun(ctx, feedPath, update, summary.Imported, summary.Updated, len(summary.Errors)); err != nil {
			log.Printf("archive import run: %v", err)
		}
		cancel()
	}
	if e.notifier != nil {
		if err := e.notifier.PublishImport(notify.ImportEvent{
			FeedPath: feedPath,
			Update:   update,
			Imported: summary.Imported,
			Updated:  summary.Updated,
			Errors:   len(summary.Errors),
			RanAt:    time.Now(),
		}); err != nil {
			log.Printf("publish import event: %v", err)
		}
	}
	return summary, nil
}

// LookupActive returns the broadcasts transmitting on freqKHz right now,
// within the engine's frequency tolerance. Hits are archived and
// published when side channels are configured.
func (e *Engine) LookupActive(freqKHz float64) ([]storage.ActiveBroadcast, error) {
	rows, err := e.matcher.Lookup(freqKHz)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		e.reportSpots(freqKHz, rows)
	}
	return rows, nil
}

// Search runs a filtered search over the whole schedule, with no time or
// day gating.
func (e *Engine) Search(f storage.SearchFilters) ([]storage.SearchResult, error) {
	return e.store.Search(f)
}

// ClassifyBand returns the band name for a frequency.
func (e *Engine) ClassifyBand(freqKHz float64) string {
	return e.bands.Classify(freqKHz)
}

// BandCenter returns the center frequency of a named band in kHz.
func (e *Engine) BandCenter(name string) float64 {
	return e.bands.Center(name)
}

// Bands returns the loaded band table.
func (e *Engine) Bands() []storage.Band {
	return e.bands.All()
}

// ReloadBands re-reads the band table after an external edit.
func (e *Engine) ReloadBands() error {
	return e.bands.Reload()
}

// Stats returns aggregate statistics over the stored schedule.
func (e *Engine) Stats() (*storage.Stats, error) {
	return e.store.GetStats()
}

// Catalog returns all entries of the named reference catalog.
func (e *Engine) Catalog(name string) ([]storage.CatalogEntry, error) {
	return e.store.Catalog(name)
}

// RenameCatalogEntry sets the display name of a catalog entry.
func (e *Engine) RenameCatalogEntry(catalog, code, name string) error {
	return e.store.RenameCatalogEntry(catalog, code, name)
}

// DeleteCatalogEntry removes a catalog entry. Fails while broadcasts
// still reference it.
func (e *Engine) DeleteCatalogEntry(catalog, code string) error {
	return e.store.DeleteCatalogEntry(catalog, code)
}

// AddBand inserts a frequency band and reloads the classification table.
func (e *Engine) AddBand(b storage.Band) error {
	if err := e.store.AddBand(b); err != nil {
		return err
	}
	return e.bands.Reload()
}

// DeleteBand removes a frequency band and reloads the classification
// table.
func (e *Engine) DeleteBand(name string) error {
	if err := e.store.DeleteBand(name); err != nil {
		return err
	}
	return e.bands.Reload()
}

// SaveBroadcast stores a manually entered broadcast, resolving the
// optional catalog codes to references in the same transaction. Manual
// rows survive full-replace imports.
func (e *Engine) SaveBroadcast(b *storage.Broadcast, countryCode, languageCode, areaCode string) (int64, error) {
	tx, err := e.store.Begin()
	if err != nil {
		return 0, err
	}
	if countryCode != "" {
		if b.CountryID, err = tx.ResolveCountry(countryCode); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if languageCode != "" {
		if b.LanguageID, err = tx.ResolveLanguage(languageCode); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if areaCode != "" {
		if b.TargetAreaID, err = tx.ResolveArea(areaCode); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	id, err := tx.Insert(b)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecentSpots returns archived lookup hits, newest first, filtered by the
// query. Returns ErrNoArchive when the reception archive is not
// configured.
func (e *Engine) RecentSpots(ctx context.Context, q storage.SpotQuery) ([]storage.Spot, error) {
	if e.archive == nil {
		return nil, ErrNoArchive
	}
	return e.archive.Spots(ctx, q)
}

func (e *Engine) reportSpots(tunedKHz float64, rows []storage.ActiveBroadcast) {
	now := time.Now()

	if e.archive != nil {
		spots := make([]storage.Spot, 0, len(rows))
		for _, r := range rows {
			spots = append(spots, storage.Spot{
				TunedKHz:        tunedKHz,
				FrequencyKHz:    r.FrequencyKHz,
				Station:         r.StationName,
				Country:         r.CountryName,
				Language:        r.LanguageName,
				Band:            e.bands.Classify(r.FrequencyKHz),
				StartTime:       r.StartTime,
				EndTime:         r.EndTime,
				DaysOfOperation: r.DaysOfOperation,
				SpottedAt:       now,
			})
		}
		ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
		if err := e.archive.RecordSpots(ctx, spots); err != nil {
			log.Printf("archive spots: %v", err)
		}
		cancel()
	}

	if e.notifier != nil {
		for _, r := range rows {
			ev := notify.SpotEvent{
				TunedKHz:     tunedKHz,
				FrequencyKHz: r.FrequencyKHz,
				Station:      r.StationName,
				Country:      r.CountryName,
				Language:     r.LanguageName,
				Band:         e.bands.Classify(r.FrequencyKHz),
				StartTime:    r.StartTime,
				EndTime:      r.EndTime,
				SpottedAt:    now,
			}
			if err := e.notifier.PublishSpot(ev); err != nil {
				log.Printf("publish spot event: %v", err)
				break
			}
		}
	}
}
