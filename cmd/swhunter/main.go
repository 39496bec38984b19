// Command-line entry point for the shortwave schedule engine.
//
// The schedule lives in a local SQLite database. "import" loads an EiBi
// semicolon-separated schedule file into it; the remaining commands
// query it. "serve" exposes the same operations over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"swhunter/internal/api"
	"swhunter/internal/config"
	"swhunter/internal/engine"
	"swhunter/internal/notify"
	"swhunter/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "swhunter - shortwave broadcast schedule engine")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  import   - load an EiBi schedule file into the database")
	fmt.Fprintln(w, "  lookup   - show what is on a frequency right now")
	fmt.Fprintln(w, "  search   - search the full schedule with filters")
	fmt.Fprintln(w, "  stats    - print database statistics")
	fmt.Fprintln(w, "  bands    - list the frequency band table")
	fmt.Fprintln(w, "  catalog  - list a reference catalog (country, language, area)")
	fmt.Fprintln(w, "  spots    - list archived lookup hits (needs the reception archive)")
	fmt.Fprintln(w, "  serve    - run the HTTP API server")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  swhunter import --file eibi.csv [--update] [--config swhunter.toml]")
	fmt.Fprintln(w, "  swhunter lookup --freq 9400")
	fmt.Fprintln(w, "  swhunter search [--station name] [--band 31m] [--country BUL] [--time 2130]")
	fmt.Fprintln(w, "  swhunter spots [--station name] [--band 31m] [--since 24h] [--limit 50]")
	fmt.Fprintln(w, "  swhunter serve [--config swhunter.toml]")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "import":
		runImport(os.Args[2:])
	case "lookup":
		runLookup(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "bands":
		runBands(os.Args[2:])
	case "catalog":
		runCatalog(os.Args[2:])
	case "spots":
		runSpots(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// loadConfig reads the TOML config when a path is given, otherwise uses
// the defaults.
func loadConfig(path string) config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openEngine opens the store and wires the optional side channels.
func openEngine(cfg config.Config) (*engine.Engine, func()) {
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	closers := []func(){func() { _ = store.Close() }}

	var opts engine.Options
	if cfg.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		archive, err := storage.OpenArchive(ctx, storage.ClickHouseConfig{
			Host:     cfg.Archive.Host,
			Port:     cfg.Archive.Port,
			Database: cfg.Archive.Database,
			User:     cfg.Archive.User,
			Password: cfg.Archive.Password,
		})
		if err != nil {
			log.Printf("Reception archive unavailable, continuing without: %v", err)
		} else if err := archive.CreateSchema(ctx); err != nil {
			log.Printf("Reception archive schema failed, continuing without: %v", err)
			_ = archive.Close()
		} else {
			opts.Archive = archive
			closers = append(closers, func() { _ = archive.Close() })
		}
		cancel()
	}
	if cfg.NATS.Enabled {
		pub, err := notify.Connect(cfg.NATS.URL)
		if err != nil {
			log.Printf("Event publisher unavailable, continuing without: %v", err)
		} else {
			opts.Notifier = pub
			closers = append(closers, pub.Close)
		}
	}

	eng, err := engine.New(store, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start engine: %v\n", err)
		os.Exit(1)
	}
	return eng, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "EiBi schedule file to import")
	update := fs.Bool("update", false, "Update existing rows instead of replacing all imported rows")
	cfgPath := fs.String("config", "", "Config file (TOML)")
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "import: --file is required")
		os.Exit(2)
	}

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	summary, err := eng.Ingest(*file, *update)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d rows, updated %d\n", summary.Imported, summary.Updated)
	if len(summary.Errors) > 0 {
		fmt.Printf("%d rows skipped:\n", len(summary.Errors))
		for _, e := range summary.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
}

func runLookup(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	freq := fs.Float64("freq", 0, "Frequency in kHz")
	cfgPath := fs.String("config", "", "Config file (TOML)")
	_ = fs.Parse(args)

	if *freq <= 0 {
		fmt.Fprintln(os.Stderr, "lookup: --freq is required")
		os.Exit(2)
	}

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	hits, err := eng.LookupActive(*freq)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Printf("Nothing on %.1f kHz right now\n", *freq)
		return
	}

	fmt.Printf("On %.1f kHz (%s band):\n", *freq, eng.ClassifyBand(*freq))
	for _, h := range hits {
		line := fmt.Sprintf("  %8.1f  %-30s", h.FrequencyKHz, h.StationName)
		if h.StartTime != "" || h.EndTime != "" {
			line += fmt.Sprintf("  %s-%s", h.StartTime, h.EndTime)
		}
		if h.LanguageName != "" {
			line += "  " + h.LanguageName
		}
		if h.CountryName != "" {
			line += "  (" + h.CountryName + ")"
		}
		fmt.Println(line)
	}
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	freqMin := fs.Float64("freq-min", 0, "Minimum frequency in kHz")
	freqMax := fs.Float64("freq-max", 0, "Maximum frequency in kHz")
	station := fs.String("station", "", "Station name substring")
	country := fs.String("country", "", "Country code")
	language := fs.String("language", "", "Language code")
	target := fs.String("target", "", "Target area code")
	band := fs.String("band", "", "Band name (e.g. 31m)")
	at := fs.String("time", "", "Active at time (HHMM)")
	limit := fs.Int("limit", 0, "Maximum number of rows (0 = all)")
	cfgPath := fs.String("config", "", "Config file (TOML)")
	_ = fs.Parse(args)

	var filters storage.SearchFilters
	if *freqMin > 0 {
		filters.FreqMin = freqMin
	}
	if *freqMax > 0 {
		filters.FreqMax = freqMax
	}
	filters.Station = *station
	filters.CountryCode = *country
	filters.LanguageCode = *language
	filters.TargetAreaCode = *target
	filters.Band = *band
	filters.Time = *at
	filters.Limit = *limit

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	results, err := eng.Search(filters)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No matches")
		return
	}

	fmt.Printf("%-9s %-9s %-5s %-30s %-8s %-20s %s\n",
		"kHz", "Time", "Band", "Station", "Lang", "Country", "Days")
	for _, r := range results {
		bandName := r.BandName
		if bandName == "" {
			bandName = "---"
		}
		fmt.Printf("%9.1f %4s-%4s %-5s %-30s %-8s %-20s %s\n",
			r.FrequencyKHz, r.StartTime, r.EndTime, bandName,
			r.StationName, r.Language, r.Country, r.DaysOfOperation)
	}
	fmt.Printf("%d rows\n", len(results))
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file (TOML)")
	_ = fs.Parse(args)

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	stats, err := eng.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Broadcasts: %d\n", stats.TotalBroadcasts)
	fmt.Printf("Stations:   %d\n", stats.UniqueStations)
	fmt.Printf("Countries:  %d\n", stats.Countries)
	fmt.Printf("Languages:  %d\n", stats.Languages)
	if len(stats.TopStations) > 0 {
		fmt.Println("\nTop stations:")
		for _, s := range stats.TopStations {
			fmt.Printf("  %5d  %s\n", s.Count, s.Station)
		}
	}
	if len(stats.BandDistribution) > 0 {
		fmt.Println("\nBy band:")
		for _, b := range stats.BandDistribution {
			fmt.Printf("  %5d  %s\n", b.Count, b.Band)
		}
	}
}

func runBands(args []string) {
	fs := flag.NewFlagSet("bands", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file (TOML)")
	add := fs.String("add", "", "Add a band: name:start:end (kHz)")
	remove := fs.String("remove", "", "Remove a band by name")
	_ = fs.Parse(args)

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	if *add != "" {
		band, err := parseBandSpec(*add)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bands: %v\n", err)
			os.Exit(2)
		}
		if err := eng.AddBand(band); err != nil {
			fmt.Fprintf(os.Stderr, "Add band failed: %v\n", err)
			os.Exit(1)
		}
	}
	if *remove != "" {
		if err := eng.DeleteBand(*remove); err != nil {
			fmt.Fprintf(os.Stderr, "Remove band failed: %v\n", err)
			os.Exit(1)
		}
	}

	for _, b := range eng.Bands() {
		fmt.Printf("%-6s %8.0f - %8.0f kHz  (center %.0f)\n",
			b.Name, b.FreqStart, b.FreqEnd, eng.BandCenter(b.Name))
	}
}

// parseBandSpec parses "name:start:end" into a Band.
func parseBandSpec(spec string) (storage.Band, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return storage.Band{}, fmt.Errorf("bad band spec %q, want name:start:end", spec)
	}
	start, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return storage.Band{}, fmt.Errorf("bad start frequency %q", parts[1])
	}
	end, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return storage.Band{}, fmt.Errorf("bad end frequency %q", parts[2])
	}
	if parts[0] == "" || end <= start {
		return storage.Band{}, fmt.Errorf("bad band spec %q, need a name and end > start", spec)
	}
	return storage.Band{Name: parts[0], FreqStart: start, FreqEnd: end}, nil
}

func runCatalog(args []string) {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	name := fs.String("name", "country", "Catalog to list: country, language or area")
	rename := fs.String("rename", "", "Rename an entry: code=new name")
	cfgPath := fs.String("config", "", "Config file (TOML)")
	_ = fs.Parse(args)

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	if *rename != "" {
		code, newName, ok := strings.Cut(*rename, "=")
		if !ok || code == "" || newName == "" {
			fmt.Fprintln(os.Stderr, "catalog: --rename wants code=new name")
			os.Exit(2)
		}
		if err := eng.RenameCatalogEntry(*name, code, newName); err != nil {
			fmt.Fprintf(os.Stderr, "Rename failed: %v\n", err)
			os.Exit(1)
		}
	}

	entries, err := eng.Catalog(*name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog failed: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Printf("%-6s %s\n", e.Code, e.Name)
	}
	fmt.Printf("%d entries\n", len(entries))
}

func runSpots(args []string) {
	fs := flag.NewFlagSet("spots", flag.ExitOnError)
	station := fs.String("station", "", "Station name substring")
	band := fs.String("band", "", "Band name (e.g. 31m)")
	since := fs.Duration("since", 0, "Only spots newer than this (e.g. 24h)")
	limit := fs.Int("limit", 0, "Maximum number of rows (0 = default)")
	cfgPath := fs.String("config", "", "Config file (TOML)")
	_ = fs.Parse(args)

	eng, closeAll := openEngine(loadConfig(*cfgPath))
	defer closeAll()

	query := storage.SpotQuery{
		Station: *station,
		Band:    *band,
		Limit:   *limit,
	}
	if *since > 0 {
		query.Since = time.Now().Add(-*since)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	spots, err := eng.RecentSpots(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Spots failed: %v\n", err)
		os.Exit(1)
	}
	if len(spots) == 0 {
		fmt.Println("No archived spots")
		return
	}

	fmt.Printf("%-20s %9s %-5s %-30s %-20s\n", "Spotted", "kHz", "Band", "Station", "Country")
	for _, s := range spots {
		fmt.Printf("%-20s %9.1f %-5s %-30s %-20s\n",
			s.SpottedAt.Format("2006-01-02 15:04:05"),
			s.FrequencyKHz, s.Band, s.Station, s.Country)
	}
	fmt.Printf("%d spots\n", len(spots))
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file (TOML)")
	bind := fs.String("bind", "", "Listen address (overrides config)")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if *bind != "" {
		cfg.Server.Bind = *bind
	}

	eng, closeAll := openEngine(cfg)
	defer closeAll()

	server := api.NewServer(eng, cfg.Server.Bind)
	if err := server.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
