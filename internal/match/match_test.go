package match

import "testing"

func TestDayPattern_Range(t *testing.T) {
	tests := []struct {
		pattern string
		day     string
		want    bool
	}{
		{"mon-fri", "mon", true},
		{"mon-fri", "wed", true},
		{"mon-fri", "fri", true},
		{"mon-fri", "sat", false},
		{"mon-fri", "sun", false},

		// Wraps across the week boundary.
		{"fri-mon", "fri", true},
		{"fri-mon", "sat", true},
		{"fri-mon", "sun", true},
		{"fri-mon", "mon", true},
		{"fri-mon", "tue", false},
		{"fri-mon", "wed", false},
		{"fri-mon", "thu", false},

		// Case-insensitive, whitespace-tolerant.
		{"Mon-Fri", "tue", true},
		{" sat - sun ", "sat", true},
	}
	for _, tt := range tests {
		if got := ParseDayPattern(tt.pattern).Matches(tt.day); got != tt.want {
			t.Errorf("ParseDayPattern(%q).Matches(%q) = %v, want %v", tt.pattern, tt.day, got, tt.want)
		}
	}
}

func TestDayPattern_List(t *testing.T) {
	tests := []struct {
		pattern string
		day     string
		want    bool
	}{
		{"mon,thu,sat", "thu", true},
		{"mon,thu,sat", "fri", false},
		{"sun", "sun", true},
		{"sun", "mon", false},
		{"Mon, Thu", "thu", true},
	}
	for _, tt := range tests {
		if got := ParseDayPattern(tt.pattern).Matches(tt.day); got != tt.want {
			t.Errorf("ParseDayPattern(%q).Matches(%q) = %v, want %v", tt.pattern, tt.day, got, tt.want)
		}
	}
}

func TestDayPattern_Empty(t *testing.T) {
	for _, day := range weekDays {
		if !ParseDayPattern("").Matches(day) {
			t.Errorf("empty pattern should match %q", day)
		}
		if !ParseDayPattern("   ").Matches(day) {
			t.Errorf("blank pattern should match %q", day)
		}
	}
}

func TestDayPattern_BadRangeFallsBackToList(t *testing.T) {
	// One endpoint unrecognized: range syntax is abandoned, and the whole
	// pattern (dash included) is treated as an exact-day list. Nothing
	// matches, but nothing blows up either.
	p := ParseDayPattern("xyz-mon")
	for _, day := range weekDays {
		if p.Matches(day) {
			t.Errorf("pattern %q should not match %q", "xyz-mon", day)
		}
	}

	// Two dashes disqualify range syntax outright.
	p = ParseDayPattern("mon-wed-fri")
	if p.Matches("tue") {
		t.Error("mon-wed-fri should not be treated as a range")
	}
}

func TestTimeWindowOverlaps_NonWrapping(t *testing.T) {
	tests := []struct {
		name           string
		bStart, bEnd   string
		wStart, wEnd   string
		want           bool
	}{
		{"inside", "0600", "0700", "0620", "0640", true},
		{"window before", "0600", "0700", "0500", "0540", false},
		{"window after", "0600", "0700", "0710", "0730", false},
		{"overlap at start", "0600", "0700", "0550", "0610", true},
		{"overlap at end", "0600", "0700", "0650", "0710", true},
		{"exact edges", "0600", "0700", "0700", "0720", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeWindowOverlaps(tt.bStart, tt.bEnd, tt.wStart, tt.wEnd)
			if got != tt.want {
				t.Errorf("TimeWindowOverlaps(%q, %q, %q, %q) = %v, want %v",
					tt.bStart, tt.bEnd, tt.wStart, tt.wEnd, got, tt.want)
			}
		})
	}
}

func TestTimeWindowOverlaps_CrossesMidnight(t *testing.T) {
	// A 2300-0100 schedule covers both sides of midnight.
	tests := []struct {
		name         string
		wStart, wEnd string
		want         bool
	}{
		{"early morning side", "0020", "0040", true},
		{"late night side", "2320", "2340", true},
		{"noon", "1150", "1210", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeWindowOverlaps("2300", "0100", tt.wStart, tt.wEnd)
			if got != tt.want {
				t.Errorf("TimeWindowOverlaps(2300, 0100, %q, %q) = %v, want %v",
					tt.wStart, tt.wEnd, got, tt.want)
			}
		})
	}
}

func TestTimeWindowOverlaps_Permissive(t *testing.T) {
	// Missing times mean always active.
	if !TimeWindowOverlaps("", "", "1200", "1220") {
		t.Error("missing broadcast times should always match")
	}
	if !TimeWindowOverlaps("0600", "", "1200", "1220") {
		t.Error("missing end time should always match")
	}
	// Unparseable 4-character times resolve to always active, not to a
	// non-match.
	if !TimeWindowOverlaps("12a0", "1300", "0100", "0120") {
		t.Error("malformed broadcast time should resolve to always active")
	}
}

func TestTimeToMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"0000", 0, true},
		{"0130", 90, true},
		{"2359", 1439, true},
		{"130", 0, true}, // wrong length resolves to midnight
		{"", 0, true},
		{"ab30", 0, false},
	}
	for _, tt := range tests {
		got, ok := timeToMinutes(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("timeToMinutes(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNowWindow(t *testing.T) {
	// 2026-01-05 is a Monday.
	now := mustTime(t, "2026-01-05T00:05:00")
	day, wStart, wEnd := nowWindow(now)
	if day != "mon" {
		t.Errorf("day = %q, want mon", day)
	}
	// The window edges wrap through midnight like a wall clock.
	if wStart != "2355" {
		t.Errorf("window start = %q, want 2355", wStart)
	}
	if wEnd != "0015" {
		t.Errorf("window end = %q, want 0015", wEnd)
	}
}
