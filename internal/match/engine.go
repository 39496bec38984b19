package match

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"swhunter/internal/storage"
)

// Sentinel errors distinguishing lookup failure classes. Callers check
// them with errors.Is to tell "no matches" apart from "storage
// unavailable" and "internal computation error".
var (
	ErrStorage    = errors.New("storage unavailable")
	ErrEvaluation = errors.New("schedule evaluation failed")
)

// ScheduleStore is the read surface the lookup engine needs.
type ScheduleStore interface {
	ActiveInRange(freqMin, freqMax float64) ([]storage.ActiveBroadcast, error)
}

// Engine answers "what is transmitting on frequency F right now".
type Engine struct {
	store ScheduleStore
	now   func() time.Time
}

// NewEngine creates a lookup engine reading from the given store.
func NewEngine(store ScheduleStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// SetClock overrides the engine clock. Tests pin "now" with it.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Lookup returns the broadcasts admitting the current instant within
// ±ToleranceKHz of freqKHz, ordered by frequency then start time.
// Storage failures wrap ErrStorage; evaluation failures wrap
// ErrEvaluation. Either way the result set is empty, never partial.
func (e *Engine) Lookup(freqKHz float64) (results []storage.ActiveBroadcast, err error) {
	// One malformed schedule row must not take down the whole lookup.
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("%w: %v", ErrEvaluation, r)
		}
	}()

	rows, err := e.store.ActiveInRange(freqKHz-ToleranceKHz, freqKHz+ToleranceKHz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	day, windowStart, windowEnd := nowWindow(e.now())
	for _, row := range rows {
		if !ParseDayPattern(row.DaysOfOperation).Matches(day) {
			continue
		}
		if !TimeWindowOverlaps(row.StartTime, row.EndTime, windowStart, windowEnd) {
			continue
		}
		results = append(results, row)
	}
	return results, nil
}

// nowWindow derives the current lowercase day name and the ±WindowMinutes
// query window in "HHMM" form. The window edges wrap through midnight the
// same way a wall clock does.
func nowWindow(now time.Time) (day, windowStart, windowEnd string) {
	margin := WindowMinutes * time.Minute
	day = strings.ToLower(now.Format("Mon"))
	windowStart = now.Add(-margin).Format("1504")
	windowEnd = now.Add(margin).Format("1504")
	return day, windowStart, windowEnd
}
