package storage

// StationCount pairs a station name with its schedule entry count.
type StationCount struct {
	Station string `json:"station"`
	Count   int    `json:"count"`
}

// BandCount pairs a band name with its schedule entry count.
type BandCount struct {
	Band  string `json:"band"`
	Count int    `json:"count"`
}

// Stats holds aggregate statistics about the stored schedule.
type Stats struct {
	TotalBroadcasts  int            `json:"total_broadcasts"`
	UniqueStations   int            `json:"unique_stations"`
	Countries        int            `json:"countries"`
	Languages        int            `json:"languages"`
	TopStations      []StationCount `json:"top_stations,omitempty"`
	BandDistribution []BandCount    `json:"band_distribution,omitempty"`
}

// GetStats returns statistics about the stored schedule.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	row := s.db.QueryRow("SELECT COUNT(*) FROM broadcasts")
	if err := row.Scan(&stats.TotalBroadcasts); err != nil {
		return nil, err
	}

	row = s.db.QueryRow("SELECT COUNT(DISTINCT station_name) FROM broadcasts")
	if err := row.Scan(&stats.UniqueStations); err != nil {
		return nil, err
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM countries")
	if err := row.Scan(&stats.Countries); err != nil {
		return nil, err
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM languages")
	if err := row.Scan(&stats.Languages); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT station_name, COUNT(*) AS freq_count
		FROM broadcasts
		GROUP BY station_name
		ORDER BY freq_count DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var sc StationCount
		if err := rows.Scan(&sc.Station, &sc.Count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.TopStations = append(stats.TopStations, sc)
	}
	_ = rows.Close()

	rows, err = s.db.Query(`
		SELECT COALESCE(fb.name, '---'), COUNT(*) AS cnt
		FROM broadcasts b
		LEFT JOIN frequency_bands fb ON b.frequency_khz >= fb.freq_start
			AND b.frequency_khz < fb.freq_end
		GROUP BY fb.name
		ORDER BY cnt DESC
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var bc BandCount
		if err := rows.Scan(&bc.Band, &bc.Count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.BandDistribution = append(stats.BandDistribution, bc)
	}
	_ = rows.Close()

	return stats, nil
}
