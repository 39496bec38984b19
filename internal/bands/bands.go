// Package bands classifies frequencies into named broadcast bands.
package bands

import (
	"swhunter/internal/storage"
)

// Unclassified is returned for frequencies outside every known band.
const Unclassified = "---"

// DefaultCenterKHz is returned when a band name is unknown; it parks the
// caller mid-shortwave rather than at zero.
const DefaultCenterKHz = 10000.0

// Table is the frequency band table, loaded once from the store and
// reused for the lifetime of the engine. Reload is the only mutation;
// callers that edit bands externally invoke it while no lookup is in
// flight.
type Table struct {
	store *storage.Store
	bands []storage.Band
}

// Load reads the band table from the store.
func Load(store *storage.Store) (*Table, error) {
	t := &Table{store: store}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the band table from the store.
func (t *Table) Reload() error {
	bands, err := t.store.Bands()
	if err != nil {
		return err
	}
	t.bands = bands
	return nil
}

// Classify returns the band name covering the given frequency. Bands are
// ordered ascending and may overlap; the first match wins.
func (t *Table) Classify(freqKHz float64) string {
	for _, b := range t.bands {
		if b.FreqStart <= freqKHz && freqKHz <= b.FreqEnd {
			return b.Name
		}
	}
	return Unclassified
}

// Center returns the midpoint frequency of a named band in kHz, or
// DefaultCenterKHz when the band is unknown.
func (t *Table) Center(name string) float64 {
	for _, b := range t.bands {
		if b.Name == name {
			return (b.FreqStart + b.FreqEnd) / 2
		}
	}
	return DefaultCenterKHz
}

// All returns the loaded band table.
func (t *Table) All() []storage.Band {
	return t.bands
}
