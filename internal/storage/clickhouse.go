package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings for the optional
// reception archive.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Archive wraps a ClickHouse connection holding the append-only reception
// history: every lookup hit and every import run. The schedule itself
// lives in SQLite; the archive exists for analytics over time.
type Archive struct {
	conn driver.Conn
}

// OpenArchive opens a connection to the ClickHouse reception archive.
func OpenArchive(ctx context.Context, cfg ClickHouseConfig) (*Archive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &Archive{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

// CreateSchema creates the archive tables.
func (a *Archive) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS spots (
			tuned_khz       Float64,
			frequency_khz   Float64,
			station         LowCardinality(String),
			country         LowCardinality(String),
			language        LowCardinality(String),
			band            LowCardinality(String),
			start_time      String,
			end_time        String,
			days_operation  String,
			spotted_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(spotted_at)
		ORDER BY (station, spotted_at)
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS import_runs (
			feed_path       String,
			update_mode     UInt8,
			imported        UInt32,
			updated         UInt32,
			errors          UInt32,
			ran_at          DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ran_at)
		ORDER BY ran_at`,
	}

	for _, q := range queries {
		if err := a.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Spot is one lookup hit recorded in the archive.
type Spot struct {
	TunedKHz        float64   `json:"tuned_khz"`
	FrequencyKHz    float64   `json:"frequency_khz"`
	Station         string    `json:"station"`
	Country         string    `json:"country,omitempty"`
	Language        string    `json:"language,omitempty"`
	Band            string    `json:"band,omitempty"`
	StartTime       string    `json:"start_time,omitempty"`
	EndTime         string    `json:"end_time,omitempty"`
	DaysOfOperation string    `json:"days_of_operation,omitempty"`
	SpottedAt       time.Time `json:"spotted_at"`
}

// RecordSpots appends the hits of one lookup to the archive.
func (a *Archive) RecordSpots(ctx context.Context, spots []Spot) error {
	if len(spots) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO spots (tuned_khz, frequency_khz, station, country, language, band, start_time, end_time, days_operation, spotted_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, s := range spots {
		at := s.SpottedAt
		if at.IsZero() {
			at = time.Now()
		}
		err = batch.Append(s.TunedKHz, s.FrequencyKHz, s.Station, s.Country,
			s.Language, s.Band, s.StartTime, s.EndTime, s.DaysOfOperation, at)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// RecordImportRun appends one ingestion run summary to the archive.
func (a *Archive) RecordImportRun(ctx context.Context, feedPath string, update bool, imported, updated, errCount int) error {
	mode := uint8(0)
	if update {
		mode = 1
	}
	err := a.conn.Exec(ctx, `
		INSERT INTO import_runs (feed_path, update_mode, imported, updated, errors)
		VALUES (?, ?, ?, ?, ?)
	`, feedPath, mode, uint32(imported), uint32(updated), uint32(errCount))
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// SpotQuery contains filtering options for querying archived spots.
type SpotQuery struct {
	Station string // substring match
	Band    string // exact match
	Since   time.Time
	Limit   int // default 100
}

// Spots retrieves archived spots matching the given parameters, newest
// first.
func (a *Archive) Spots(ctx context.Context, q SpotQuery) ([]Spot, error) {
	var conditions []string
	var args []interface{}

	if q.Station != "" {
		conditions = append(conditions, "station LIKE ?")
		args = append(args, "%"+q.Station+"%")
	}
	if q.Band != "" {
		conditions = append(conditions, "band = ?")
		args = append(args, q.Band)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "spotted_at >= ?")
		args = append(args, q.Since)
	}

	query := `SELECT tuned_khz, frequency_khz, station, country, language, band, start_time, end_time, days_operation, spotted_at FROM spots`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY spotted_at DESC"

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := a.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query spots: %w", err)
	}
	defer rows.Close()

	var out []Spot
	for rows.Next() {
		var s Spot
		err := rows.Scan(&s.TunedKHz, &s.FrequencyKHz, &s.Station, &s.Country,
			&s.Language, &s.Band, &s.StartTime, &s.EndTime, &s.DaysOfOperation, &s.SpottedAt)
		if err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
