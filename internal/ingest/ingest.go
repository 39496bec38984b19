// Package ingest imports broadcast schedule feeds into the store.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"swhunter/internal/eibi"
	"swhunter/internal/storage"
)

// BatchSize is the number of processed rows between commits. Feeds run to
// tens of thousands of rows; unbounded transactions would hold the write
// lock for the whole import.
const BatchSize = 1000

// Summary reports the outcome of one ingestion run. Errors holds one
// "Row N: detail" entry per failed feed row; a non-empty list does not
// mean the run failed.
type Summary struct {
	Imported int
	Updated  int
	Errors   []string
}

// Importer ingests schedule feeds. A single Importer assumes it is the
// only writer for the duration of a run.
type Importer struct {
	store     *storage.Store
	batchSize int
}

// New creates an Importer committing every BatchSize rows.
func New(store *storage.Store) *Importer {
	return &Importer{store: store, batchSize: BatchSize}
}

// Run imports the feed at path. With update set, rows already present
// (matched on frequency, station name and start time) are overwritten in
// place. Without it, all previously imported rows are purged first and
// the feed is loaded fresh; manually entered rows always survive.
//
// Row-level failures are recorded in the summary and never abort the
// run. The returned error covers whole-run failures only (unreadable
// feed, failed commit).
func (im *Importer) Run(path string, update bool) (*Summary, error) {
	summary := &Summary{}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer func() { _ = f.Close() }()

	if !update {
		if err := im.purge(); err != nil {
			return nil, err
		}
	}

	tx, err := im.store.Begin()
	if err != nil {
		return nil, err
	}
	pending := 0

	scanner := bufio.NewScanner(f)

	// First line carries the column headers.
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("read feed: %w", err)
		}
		_ = tx.Rollback()
		return summary, nil
	}

	for lineNum := 2; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		row, err := eibi.ParseLine(line)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %v", lineNum, err))
			continue
		}

		if err := im.upsert(tx, row, update, summary); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %v", lineNum, err))
			continue
		}

		pending++
		if pending >= im.batchSize {
			if err := tx.Commit(); err != nil {
				return summary, fmt.Errorf("commit batch: %w", err)
			}
			if tx, err = im.store.Begin(); err != nil {
				return summary, err
			}
			pending = 0
		}
	}
	if err := scanner.Err(); err != nil {
		_ = tx.Rollback()
		return summary, fmt.Errorf("read feed: %w", err)
	}

	// Final commit regardless of batch boundary.
	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit: %w", err)
	}
	return summary, nil
}

// purge removes all feed-imported rows ahead of a full-replace run.
func (im *Importer) purge() error {
	tx, err := im.store.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.PurgeImported(); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// upsert resolves catalog references and inserts or updates one row.
func (im *Importer) upsert(tx *storage.Tx, row *eibi.Row, update bool, summary *Summary) error {
	countryID, err := tx.ResolveCountry(row.CountryCode)
	if err != nil {
		return err
	}
	languageID, err := tx.ResolveLanguage(row.LanguageCode)
	if err != nil {
		return err
	}
	areaID, err := tx.ResolveArea(row.TargetAreaCode)
	if err != nil {
		return err
	}

	b := &storage.Broadcast{
		FrequencyKHz:    row.FrequencyKHz,
		StartTime:       row.StartTime,
		EndTime:         row.EndTime,
		DaysOfOperation: row.DaysOfOperation,
		CountryID:       countryID,
		StationName:     row.StationName,
		LanguageID:      languageID,
		TargetAreaID:    areaID,
		TransmitterSite: row.TransmitterSite,
		PersistenceCode: row.PersistenceCode,
		StartDate:       row.StartDate,
		EndDate:         row.EndDate,
		Remarks:         row.Remarks,
		FromFeed:        true,
	}

	existing, err := tx.FindByIdentity(b.FrequencyKHz, b.StationName, b.StartTime)
	if err != nil {
		return err
	}

	switch {
	case existing != 0 && update:
		if err := tx.Update(existing, b); err != nil {
			return err
		}
		summary.Updated++
	case existing == 0:
		if _, err := tx.Insert(b); err != nil {
			return err
		}
		summary.Imported++
	}
	// Existing row with update unset: skip, no duplicate insert.
	return nil
}
