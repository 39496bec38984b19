// Package api provides REST API endpoints for the broadcast schedule.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"swhunter/internal/engine"
	"swhunter/internal/storage"
)

// Server provides REST API access to the schedule engine.
type Server struct {
	engine *engine.Engine
	bind   string
}

// NewServer creates a schedule API server listening on bind.
func NewServer(eng *engine.Engine, bind string) *Server {
	return &Server{engine: eng, bind: bind}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	log.Printf("Schedule API starting at http://%s", s.bind)
	return http.ListenAndServe(s.bind, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/lookup/{khz}", s.handleLookup)
	r.Get("/search", s.handleSearch)
	r.Get("/stats", s.handleStats)
	r.Get("/spots", s.handleSpots)

	r.Get("/bands", s.handleGetBands)
	r.Post("/bands", s.handleAddBand)
	r.Delete("/bands/{name}", s.handleDeleteBand)

	r.Get("/catalog/{catalog}", s.handleGetCatalog)
	r.Put("/catalog/{catalog}/{code}", s.handleRenameCatalogEntry)
	r.Delete("/catalog/{catalog}/{code}", s.handleDeleteCatalogEntry)

	r.Post("/broadcasts", s.handleSaveBroadcast)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// LookupHit is one broadcast active right now on the queried frequency.
type LookupHit struct {
	FrequencyKHz    float64 `json:"frequency_khz"`
	StationName     string  `json:"station_name"`
	Country         string  `json:"country,omitempty"`
	Language        string  `json:"language,omitempty"`
	Band            string  `json:"band,omitempty"`
	StartTime       string  `json:"start_time,omitempty"`
	EndTime         string  `json:"end_time,omitempty"`
	DaysOfOperation string  `json:"days_of_operation,omitempty"`
	TransmitterSite string  `json:"transmitter_site,omitempty"`
	Remarks         string  `json:"remarks,omitempty"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	khz, err := strconv.ParseFloat(chi.URLParam(r, "khz"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid frequency")
		return
	}

	rows, err := s.engine.LookupActive(khz)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	hits := make([]LookupHit, 0, len(rows))
	for _, b := range rows {
		hits = append(hits, LookupHit{
			FrequencyKHz:    b.FrequencyKHz,
			StationName:     b.StationName,
			Country:         b.CountryName,
			Language:        b.LanguageName,
			Band:            s.engine.ClassifyBand(b.FrequencyKHz),
			StartTime:       b.StartTime,
			EndTime:         b.EndTime,
			DaysOfOperation: b.DaysOfOperation,
			TransmitterSite: b.TransmitterSite,
			Remarks:         b.Remarks,
		})
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.SearchFilters

	if v := q.Get("freq_min"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid freq_min")
			return
		}
		f.FreqMin = &min
	}
	if v := q.Get("freq_max"); v != "" {
		max, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid freq_max")
			return
		}
		f.FreqMax = &max
	}
	f.Station = q.Get("station")
	f.CountryCode = q.Get("country")
	f.LanguageCode = q.Get("language")
	f.TargetAreaCode = q.Get("target")
	f.Band = q.Get("band")
	f.Time = q.Get("time")
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = limit
	}

	results, err := s.engine.Search(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []storage.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleSpots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.SpotQuery{
		Station: q.Get("station"),
		Band:    q.Get("band"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since (use RFC3339)")
			return
		}
		query.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		query.Limit = limit
	}

	spots, err := s.engine.RecentSpots(r.Context(), query)
	if err != nil {
		if errors.Is(err, engine.ErrNoArchive) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if spots == nil {
		spots = []storage.Spot{}
	}
	writeJSON(w, http.StatusOK, spots)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetBands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Bands())
}

// BandRequest is the request body for adding a frequency band.
type BandRequest struct {
	Name      string  `json:"name"`
	FreqStart float64 `json:"freq_start"`
	FreqEnd   float64 `json:"freq_end"`
}

func (s *Server) handleAddBand(w http.ResponseWriter, r *http.Request) {
	var req BandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" || req.FreqEnd <= req.FreqStart {
		writeError(w, http.StatusBadRequest, "Band needs a name and freq_end > freq_start")
		return
	}

	err := s.engine.AddBand(storage.Band{
		Name:      req.Name,
		FreqStart: req.FreqStart,
		FreqEnd:   req.FreqEnd,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleDeleteBand(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteBand(chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Catalog(chi.URLParam(r, "catalog"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if entries == nil {
		entries = []storage.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// RenameRequest is the request body for renaming a catalog entry.
type RenameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameCatalogEntry(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	catalog := chi.URLParam(r, "catalog")
	code := chi.URLParam(r, "code")
	if err := s.engine.RenameCatalogEntry(catalog, code, req.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code, "name": req.Name})
}

func (s *Server) handleDeleteCatalogEntry(w http.ResponseWriter, r *http.Request) {
	catalog := chi.URLParam(r, "catalog")
	code := chi.URLParam(r, "code")
	if err := s.engine.DeleteCatalogEntry(catalog, code); err != nil {
		// Referenced entries fail the FK check; surface as a conflict.
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BroadcastRequest is the request body for a manual schedule entry. The
// catalog codes are optional and resolved (creating placeholder entries
// on first reference) like feed rows.
type BroadcastRequest struct {
	FrequencyKHz    float64 `json:"frequency_khz"`
	StartTime       string  `json:"start_time,omitempty"`
	EndTime         string  `json:"end_time,omitempty"`
	DaysOfOperation string  `json:"days_of_operation,omitempty"`
	StationName     string  `json:"station_name"`
	CountryCode     string  `json:"country_code,omitempty"`
	LanguageCode    string  `json:"language_code,omitempty"`
	TargetAreaCode  string  `json:"target_area_code,omitempty"`
	TransmitterSite string  `json:"transmitter_site,omitempty"`
	PersistenceCode *int    `json:"persistence_code,omitempty"`
	Remarks         string  `json:"remarks,omitempty"`
}

func (s *Server) handleSaveBroadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.FrequencyKHz <= 0 {
		writeError(w, http.StatusBadRequest, "frequency_khz must be positive")
		return
	}
	if req.StationName == "" {
		writeError(w, http.StatusBadRequest, "station_name is required")
		return
	}

	id, err := s.engine.SaveBroadcast(&storage.Broadcast{
		FrequencyKHz:    req.FrequencyKHz,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DaysOfOperation: req.DaysOfOperation,
		StationName:     req.StationName,
		TransmitterSite: req.TransmitterSite,
		PersistenceCode: req.PersistenceCode,
		Remarks:         req.Remarks,
	}, req.CountryCode, req.LanguageCode, req.TargetAreaCode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
