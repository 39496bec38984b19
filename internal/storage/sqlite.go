// Package storage provides persistent storage for broadcast schedules.
package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// InactivePersistence is the feed persistence code marking an entry as
// inactive. Rows carrying it are excluded from live lookups.
const InactivePersistence = 8

// Broadcast is a schedule entry as written by ingestion or manual edit.
// Empty strings and zero catalog IDs are stored as NULL.
type Broadcast struct {
	ID              int64
	FrequencyKHz    float64
	StartTime       string // "HHMM"
	EndTime         string // "HHMM"
	DaysOfOperation string
	CountryID       int64
	StationName     string
	LanguageID      int64
	TargetAreaID    int64
	TransmitterSite string
	PersistenceCode *int
	StartDate       string
	EndDate         string
	Remarks         string
	FromFeed        bool
}

// ActiveBroadcast is a schedule row joined with catalog display names,
// as returned by the frequency-range query feeding live lookups.
type ActiveBroadcast struct {
	ID              int64
	FrequencyKHz    float64
	StartTime       string
	EndTime         string
	DaysOfOperation string
	StationName     string
	CountryName     string
	LanguageName    string
	PersistenceCode *int
	TransmitterSite string
	Remarks         string
}

// CatalogEntry is one row of the country, language or area catalogs.
type CatalogEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Band is a named frequency range used for display classification.
type Band struct {
	Name      string  `json:"name"`
	FreqStart float64 `json:"freq_start"`
	FreqEnd   float64 `json:"freq_end"`
}

// Store wraps a SQLite database holding the broadcast schedule.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite schedule database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection keeps the pragmas below in effect for every
	// query; foreign_keys is per-connection in SQLite.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := seedBands(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed bands: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS countries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS languages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS areas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS broadcasts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		frequency_khz REAL NOT NULL,
		start_time TEXT,
		end_time TEXT,
		days_operation TEXT,
		country_id INTEGER REFERENCES countries(id),
		station_name TEXT NOT NULL,
		language_id INTEGER REFERENCES languages(id),
		target_area_id INTEGER REFERENCES areas(id),
		transmitter_site TEXT,
		persistence_code INTEGER,
		start_date TEXT,
		end_date TEXT,
		remarks TEXT,
		from_feed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now')),
		updated_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_broadcasts_frequency ON broadcasts(frequency_khz);
	CREATE INDEX IF NOT EXISTS idx_broadcasts_identity ON broadcasts(frequency_khz, station_name, start_time);
	CREATE INDEX IF NOT EXISTS idx_broadcasts_from_feed ON broadcasts(from_feed);

	CREATE TABLE IF NOT EXISTS frequency_bands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		freq_start REAL NOT NULL,
		freq_end REAL NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// defaultBands is the broadcast bandplan seeded into a fresh database,
// ascending by frequency. Ranges are kHz.
var defaultBands = []Band{
	{"LW", 153, 279},
	{"MW", 531, 1602},
	{"120m", 2300, 2495},
	{"90m", 3200, 3400},
	{"75m", 3900, 4000},
	{"60m", 4750, 5060},
	{"49m", 5900, 6200},
	{"41m", 7200, 7450},
	{"31m", 9400, 9900},
	{"25m", 11600, 12100},
	{"22m", 13570, 13870},
	{"19m", 15100, 15800},
	{"16m", 17480, 17900},
	{"15m", 18900, 19020},
	{"13m", 21450, 21850},
	{"11m", 25670, 26100},
}

func seedBands(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM frequency_bands").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, b := range defaultBands {
		if _, err := db.Exec(
			"INSERT INTO frequency_bands (name, freq_start, freq_end) VALUES (?, ?, ?)",
			b.Name, b.FreqStart, b.FreqEnd,
		); err != nil {
			return err
		}
	}
	return nil
}

// Tx is a write transaction over the schedule store. Ingestion commits in
// bounded batches, so the resolve/find/insert/update surface lives here
// rather than on Store.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a write transaction.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// ResolveCountry returns the id for a country code, creating the entry
// with a placeholder display name on first reference. An empty code
// resolves to 0 (stored as NULL).
func (t *Tx) ResolveCountry(code string) (int64, error) {
	return t.resolveOrCreate("countries", "Country", code)
}

// ResolveLanguage returns the id for a language code, creating it on
// first reference.
func (t *Tx) ResolveLanguage(code string) (int64, error) {
	return t.resolveOrCreate("languages", "Language", code)
}

// ResolveArea returns the id for a target-area code, creating it on
// first reference.
func (t *Tx) ResolveArea(code string) (int64, error) {
	return t.resolveOrCreate("areas", "Area", code)
}

func (t *Tx) resolveOrCreate(table, label, code string) (int64, error) {
	if code == "" {
		return 0, nil
	}

	var id int64
	err := t.tx.QueryRow("SELECT id FROM "+table+" WHERE code = ?", code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup %s %q: %w", table, code, err)
	}

	res, err := t.tx.Exec("INSERT INTO "+table+" (code, name) VALUES (?, ?)",
		code, fmt.Sprintf("%s %s", label, code))
	if err != nil {
		return 0, fmt.Errorf("create %s %q: %w", table, code, err)
	}
	return res.LastInsertId()
}

// FindByIdentity looks up an existing broadcast by its identity key
// (frequency, station name, start time). Returns 0 when no row matches.
// A missing start time never matches: NULL compares unequal to itself,
// so undated entries are always re-inserted rather than deduplicated.
func (t *Tx) FindByIdentity(freqKHz float64, station, startTime string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(`
		SELECT id FROM broadcasts
		WHERE frequency_khz = ? AND station_name = ? AND start_time = ?
	`, freqKHz, station, nullStr(startTime)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find broadcast: %w", err)
	}
	return id, nil
}

// Insert stores a new broadcast row.
func (t *Tx) Insert(b *Broadcast) (int64, error) {
	res, err := t.tx.Exec(`
		INSERT INTO broadcasts (
			frequency_khz, start_time, end_time, days_operation, country_id,
			station_name, language_id, target_area_id, transmitter_site,
			persistence_code, start_date, end_date, remarks, from_feed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.FrequencyKHz, nullStr(b.StartTime), nullStr(b.EndTime),
		nullStr(b.DaysOfOperation), nullID(b.CountryID), b.StationName,
		nullID(b.LanguageID), nullID(b.TargetAreaID), nullStr(b.TransmitterSite),
		nullInt(b.PersistenceCode), nullStr(b.StartDate), nullStr(b.EndDate),
		nullStr(b.Remarks), boolInt(b.FromFeed))
	if err != nil {
		return 0, fmt.Errorf("insert broadcast: %w", err)
	}
	return res.LastInsertId()
}

// Update overwrites the mutable fields of an existing broadcast and bumps
// its last-modified timestamp. The identity key fields are left untouched.
func (t *Tx) Update(id int64, b *Broadcast) error {
	_, err := t.tx.Exec(`
		UPDATE broadcasts SET
			end_time = ?, days_operation = ?, country_id = ?,
			language_id = ?, target_area_id = ?, transmitter_site = ?,
			persistence_code = ?, start_date = ?, end_date = ?, remarks = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, nullStr(b.EndTime), nullStr(b.DaysOfOperation), nullID(b.CountryID),
		nullID(b.LanguageID), nullID(b.TargetAreaID), nullStr(b.TransmitterSite),
		nullInt(b.PersistenceCode), nullStr(b.StartDate), nullStr(b.EndDate),
		nullStr(b.Remarks), id)
	if err != nil {
		return fmt.Errorf("update broadcast %d: %w", id, err)
	}
	return nil
}

// PurgeImported deletes every feed-imported broadcast, leaving manually
// entered rows in place. Used for full-replace imports.
func (t *Tx) PurgeImported() (int64, error) {
	res, err := t.tx.Exec("DELETE FROM broadcasts WHERE from_feed != 0")
	if err != nil {
		return 0, fmt.Errorf("purge imported broadcasts: %w", err)
	}
	return res.RowsAffected()
}

// SaveBroadcast inserts a single broadcast in its own transaction.
// Manual entries go through here with FromFeed unset.
func (s *Store) SaveBroadcast(b *Broadcast) (int64, error) {
	tx, err := s.Begin()
	if err != nil {
		return 0, err
	}
	id, err := tx.Insert(b)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit broadcast: %w", err)
	}
	return id, nil
}

// ActiveInRange returns broadcasts within the inclusive frequency range,
// joined with catalog names, excluding inactive entries. Rows with no
// persistence code are excluded as well, matching the feed's convention
// of omitting the code on untrusted entries. Ordered by frequency then
// start time.
func (s *Store) ActiveInRange(freqMin, freqMax float64) ([]ActiveBroadcast, error) {
	rows, err := s.db.Query(`
		SELECT
			b.id, b.frequency_khz, b.start_time, b.end_time, b.days_operation,
			b.station_name, c.name, l.name, b.persistence_code,
			b.transmitter_site, b.remarks
		FROM broadcasts b
		LEFT JOIN countries c ON b.country_id = c.id
		LEFT JOIN languages l ON b.language_id = l.id
		WHERE b.frequency_khz >= ? AND b.frequency_khz <= ?
			AND b.persistence_code != ?
		ORDER BY b.frequency_khz, b.start_time
	`, freqMin, freqMax, InactivePersistence)
	if err != nil {
		return nil, fmt.Errorf("query frequency range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ActiveBroadcast
	for rows.Next() {
		var b ActiveBroadcast
		var start, end, days, country, lang, site, remarks sql.NullString
		var persistence sql.NullInt64
		err := rows.Scan(&b.ID, &b.FrequencyKHz, &start, &end, &days,
			&b.StationName, &country, &lang, &persistence, &site, &remarks)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		b.StartTime = start.String
		b.EndTime = end.String
		b.DaysOfOperation = days.String
		b.CountryName = country.String
		b.LanguageName = lang.String
		b.TransmitterSite = site.String
		b.Remarks = remarks.String
		if persistence.Valid {
			code := int(persistence.Int64)
			b.PersistenceCode = &code
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SearchFilters contains the optional predicates for a filtered search.
// Every supplied filter is combined conjunctively; unsupplied filters
// impose no constraint.
type SearchFilters struct {
	FreqMin        *float64
	FreqMax        *float64
	Station        string // substring, case-insensitive
	CountryCode    string // exact
	LanguageCode   string // exact
	TargetAreaCode string // exact
	Band           string // exact band name
	Time           string // "HHMM", matched by raw string comparison
	Limit          int    // 0 = unlimited
}

// SearchResult is a broadcast row joined with catalog display names and
// its band classification.
type SearchResult struct {
	FrequencyKHz    float64 `json:"frequency_khz"`
	StartTime       string  `json:"start_time,omitempty"`
	EndTime         string  `json:"end_time,omitempty"`
	DaysOfOperation string  `json:"days_of_operation,omitempty"`
	Country         string  `json:"country,omitempty"`
	StationName     string  `json:"station_name"`
	Language        string  `json:"language,omitempty"`
	TargetArea      string  `json:"target_area,omitempty"`
	TransmitterSite string  `json:"transmitter_site,omitempty"`
	PersistenceCode *int    `json:"persistence_code,omitempty"`
	StartDate       string  `json:"start_date,omitempty"`
	EndDate         string  `json:"end_date,omitempty"`
	Remarks         string  `json:"remarks,omitempty"`
	BandName        string  `json:"band_name,omitempty"`
}

// Search retrieves broadcasts matching every supplied filter. No implicit
// time or day gating is applied: this is the unrestricted investigative
// path, distinct from live lookups. Ordered by frequency then start time.
func (s *Store) Search(f SearchFilters) ([]SearchResult, error) {
	query := `
		SELECT DISTINCT
			b.frequency_khz, b.start_time, b.end_time, b.days_operation,
			c.name AS country, b.station_name, l.name AS language,
			a.name AS target_area, b.transmitter_site, b.persistence_code,
			b.start_date, b.end_date, b.remarks, fb.name AS band_name
		FROM broadcasts b
		LEFT JOIN countries c ON b.country_id = c.id
		LEFT JOIN languages l ON b.language_id = l.id
		LEFT JOIN areas a ON b.target_area_id = a.id
		LEFT JOIN frequency_bands fb ON b.frequency_khz >= fb.freq_start
			AND b.frequency_khz < fb.freq_end
		WHERE 1=1`

	var conditions []string
	var args []interface{}

	if f.FreqMin != nil {
		conditions = append(conditions, "b.frequency_khz >= ?")
		args = append(args, *f.FreqMin)
	}
	if f.FreqMax != nil {
		conditions = append(conditions, "b.frequency_khz <= ?")
		args = append(args, *f.FreqMax)
	}
	if f.Station != "" {
		conditions = append(conditions, "b.station_name LIKE ?")
		args = append(args, "%"+f.Station+"%")
	}
	if f.CountryCode != "" {
		conditions = append(conditions, "c.code = ?")
		args = append(args, f.CountryCode)
	}
	if f.LanguageCode != "" {
		conditions = append(conditions, "l.code = ?")
		args = append(args, f.LanguageCode)
	}
	if f.TargetAreaCode != "" {
		conditions = append(conditions, "a.code = ?")
		args = append(args, f.TargetAreaCode)
	}
	if f.Band != "" {
		conditions = append(conditions, "fb.name = ?")
		args = append(args, f.Band)
	}
	if f.Time != "" {
		// Raw string comparison of zero-padded HHMM values.
		conditions = append(conditions, "b.start_time <= ? AND b.end_time >= ?")
		args = append(args, f.Time, f.Time)
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.frequency_khz, b.start_time"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search broadcasts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var start, end, days, country, lang, area, site sql.NullString
		var startDate, endDate, remarks, band sql.NullString
		var persistence sql.NullInt64
		err := rows.Scan(&r.FrequencyKHz, &start, &end, &days, &country,
			&r.StationName, &lang, &area, &site, &persistence,
			&startDate, &endDate, &remarks, &band)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.StartTime = start.String
		r.EndTime = end.String
		r.DaysOfOperation = days.String
		r.Country = country.String
		r.Language = lang.String
		r.TargetArea = area.String
		r.TransmitterSite = site.String
		r.StartDate = startDate.String
		r.EndDate = endDate.String
		r.Remarks = remarks.String
		r.BandName = band.String
		if persistence.Valid {
			code := int(persistence.Int64)
			r.PersistenceCode = &code
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Bands returns the frequency band table, ascending by start frequency.
func (s *Store) Bands() ([]Band, error) {
	rows, err := s.db.Query("SELECT name, freq_start, freq_end FROM frequency_bands ORDER BY freq_start")
	if err != nil {
		return nil, fmt.Errorf("query bands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Band
	for rows.Next() {
		var b Band
		if err := rows.Scan(&b.Name, &b.FreqStart, &b.FreqEnd); err != nil {
			return nil, fmt.Errorf("scan band: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddBand inserts a frequency band. Band names are unique; overlapping
// ranges are allowed, classification takes the first match in ascending
// order.
func (s *Store) AddBand(b Band) error {
	_, err := s.db.Exec(
		"INSERT INTO frequency_bands (name, freq_start, freq_end) VALUES (?, ?, ?)",
		b.Name, b.FreqStart, b.FreqEnd,
	)
	if err != nil {
		return fmt.Errorf("insert band %q: %w", b.Name, err)
	}
	return nil
}

// DeleteBand removes a frequency band by name.
func (s *Store) DeleteBand(name string) error {
	res, err := s.db.Exec("DELETE FROM frequency_bands WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete band %q: %w", name, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("band %q not found", name)
	}
	return nil
}

// catalogTables whitelists the catalog names accepted by the maintenance
// operations.
var catalogTables = map[string]string{
	"country":  "countries",
	"language": "languages",
	"area":     "areas",
}

// Catalog returns all entries of the named catalog ("country", "language"
// or "area"), ordered by display name.
func (s *Store) Catalog(catalog string) ([]CatalogEntry, error) {
	table, ok := catalogTables[catalog]
	if !ok {
		return nil, fmt.Errorf("unknown catalog: %s", catalog)
	}
	rows, err := s.db.Query("SELECT code, name FROM " + table + " ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.Code, &e.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RenameCatalogEntry replaces the placeholder display name of a catalog
// entry. The code itself is immutable.
func (s *Store) RenameCatalogEntry(catalog, code, name string) error {
	table, ok := catalogTables[catalog]
	if !ok {
		return fmt.Errorf("unknown catalog: %s", catalog)
	}
	res, err := s.db.Exec("UPDATE "+table+" SET name = ? WHERE code = ?", name, code)
	if err != nil {
		return fmt.Errorf("rename %s %q: %w", catalog, code, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %q not found", catalog, code)
	}
	return nil
}

// DeleteCatalogEntry removes a catalog entry. Foreign keys are enforced,
// so deletion fails while any broadcast still references the entry.
func (s *Store) DeleteCatalogEntry(catalog, code string) error {
	table, ok := catalogTables[catalog]
	if !ok {
		return fmt.Errorf("unknown catalog: %s", catalog)
	}
	res, err := s.db.Exec("DELETE FROM "+table+" WHERE code = ?", code)
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", catalog, code, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %q not found", catalog, code)
	}
	return nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
