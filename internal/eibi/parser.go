// Package eibi parses the semicolon-delimited EiBi broadcast schedule feed.
//
// Each feed line carries at least 11 positional fields:
//
//	frequency;time-range;days;country;station;language;target-area;site;persistence;start-date;end-date[;remarks...]
//
// The format is not strictly columnar past field 10: some feeds place a
// bracketed remark in the end-date column instead of a date. ParseLine
// preserves that heuristic rather than normalizing it.
package eibi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinFields is the minimum number of semicolon-delimited fields a feed
// line must carry to be parseable.
const MinFields = 11

// DefaultStation is substituted when the feed omits the station name.
const DefaultStation = "Unknown"

// Row is one schedule entry parsed from a feed line. String fields are
// empty when the feed left them blank; PersistenceCode is nil when the
// field was absent or not purely numeric.
type Row struct {
	FrequencyKHz    float64
	StartTime       string // "HHMM", empty when absent
	EndTime         string // "HHMM", empty when absent
	DaysOfOperation string // raw day-of-week pattern, uninterpreted here
	CountryCode     string
	StationName     string
	LanguageCode    string
	TargetAreaCode  string
	TransmitterSite string
	PersistenceCode *int
	StartDate       string
	EndDate         string
	Remarks         string
}

// ParseLine parses one feed line (header already stripped by the caller).
// It never panics; malformed lines produce an error describing the defect.
func ParseLine(line string) (*Row, error) {
	fields := strings.Split(line, ";")
	if len(fields) < MinFields {
		return nil, fmt.Errorf("not enough data (%d)", len(fields))
	}

	if fields[0] == "" {
		return nil, errors.New("missing frequency")
	}
	freq, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("bad frequency %q", fields[0])
	}
	if freq == 0 {
		return nil, errors.New("missing frequency")
	}

	start, end := SplitTimeRange(fields[1])

	row := &Row{
		FrequencyKHz:    freq,
		StartTime:       start,
		EndTime:         end,
		DaysOfOperation: fields[2],
		CountryCode:     fields[3],
		StationName:     fields[4],
		LanguageCode:    fields[5],
		TargetAreaCode:  fields[6],
		TransmitterSite: fields[7],
		StartDate:       fields[9],
		EndDate:         fields[10],
	}
	if row.StationName == "" {
		row.StationName = DefaultStation
	}
	if isDigits(fields[8]) {
		code, _ := strconv.Atoi(fields[8])
		row.PersistenceCode = &code
	}

	// Anything past field 10 is free-text remarks, rejoined with the
	// delimiter. Failing that, a bracketed token in the end-date column
	// is reinterpreted as remarks and the end date cleared. The explicit
	// remarks column always wins over the bracket sniffing.
	if len(fields) > MinFields {
		row.Remarks = strings.Join(fields[MinFields:], ";")
	} else if row.EndDate != "" && strings.Contains(row.EndDate, "[") {
		row.Remarks = row.EndDate
		row.EndDate = ""
	}

	return row, nil
}

// SplitTimeRange splits a feed time range such as "0000-2400" into start
// and end times. A bare value with no separator is a start time with no
// end; blank input yields two empty strings.
func SplitTimeRange(s string) (start, end string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.Index(s, "-"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
