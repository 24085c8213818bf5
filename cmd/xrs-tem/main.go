// xrs-tem - GOES XRS isothermal temperature and emission measure
//
// Reads XRS flux series from ClickHouse (solar.xrs_flux) or from NOAA SWPC
// X-ray JSON files, derives temperature and emission measure with the CHIANTI
// response table, and writes the diagnostics to ClickHouse (solar.xrs_tem),
// Parquet or CSV.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/xrs-tem ./cmd/xrs-tem

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/KI7MT/goes-xrs-tem/internal/common"
	"github.com/KI7MT/goes-xrs-tem/internal/export"
	"github.com/KI7MT/goes-xrs-tem/internal/metrics"
	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/spline"
	"github.com/KI7MT/goes-xrs-tem/internal/store"
	"github.com/KI7MT/goes-xrs-tem/internal/swpc"
	"github.com/KI7MT/goes-xrs-tem/internal/tem"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const dateLayout = "2006-01-02"

// run carries the state shared by both sources.
type run struct {
	id      uuid.UUID
	calc    *tem.Calculator
	stats   *common.Stats
	logger  *zap.Logger
	metrics *metrics.Metrics
	writer  *store.DiagnosticsWriter // nil on dry run or file-only output

	// accumulated per satellite for file exports
	exports   map[int]*xrs.DiagnosticSeries
	collect   bool
	failed    int
	processed int
}

func (r *run) process(ctx context.Context, s *xrs.Series) error {
	start := time.Now()
	d, err := r.calc.Calculate(ctx, s)
	if err != nil {
		r.failed++
		return err
	}
	r.processed++
	r.stats.AddSamples(uint64(d.Len()))
	r.stats.SeriesDone(time.Since(start))

	if r.writer != nil {
		n, err := r.writer.Write(ctx, r.id, d)
		r.stats.AddRowsWritten(uint64(n))
		r.metrics.Written("clickhouse", n)
		if err != nil {
			return err
		}
	}

	if r.collect {
		acc, ok := r.exports[d.Satellite]
		if !ok {
			acc = &xrs.DiagnosticSeries{Satellite: d.Satellite, Abundance: d.Abundance, TableVersion: d.TableVersion}
			r.exports[d.Satellite] = acc
		}
		acc.Points = append(acc.Points, d.Points...)
		acc.Warnings = append(acc.Warnings, d.Warnings...)
	}
	return nil
}

// export writes the accumulated diagnostics. With several satellites each
// gets its own file, suffixed _goesNN.
func (r *run) export(path string) error {
	if path == "" || len(r.exports) == 0 {
		return nil
	}
	sats := make([]int, 0, len(r.exports))
	for sat := range r.exports {
		sats = append(sats, sat)
	}
	sort.Ints(sats)

	for _, sat := range sats {
		d := r.exports[sat]
		dest := path
		if len(sats) > 1 {
			dest = suffixed(path, fmt.Sprintf("_goes%02d", sat))
		}
		if err := export.WriteFile(dest, d); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		r.metrics.Written(exportSink(dest), d.Len())
		log.Printf("Wrote %d rows to %s", d.Len(), dest)
	}
	return nil
}

func exportSink(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return "parquet"
	}
	return "csv"
}

// suffixed inserts suffix before the file extension, keeping .csv.gz whole.
func suffixed(path, suffix string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if ext == ".gz" {
		inner := filepath.Ext(base)
		base = strings.TrimSuffix(base, inner)
		ext = inner + ext
	}
	return base + suffix + ext
}

func runFiles(ctx context.Context, r *run, files []string) {
	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		feed, err := swpc.ParseFile(path)
		if err != nil {
			log.Printf("[%s] Parse error: %v", filepath.Base(path), err)
			r.failed++
			continue
		}
		log.Printf("[%s] %d series, %d samples (%d unpaired, %d invalid records)",
			filepath.Base(path), len(feed.Series), feed.Samples(), feed.Unpaired, feed.Invalid)

		for _, s := range feed.Series {
			if err := r.process(ctx, s); err != nil {
				log.Printf("[%s] GOES-%d: %v", filepath.Base(path), s.Satellite, err)
			}
		}
	}
}

func runClickHouse(ctx context.Context, r *run, reader *store.Reader, satellite int, from, to time.Time) {
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			return
		}
		next := day.AddDate(0, 0, 1)
		if next.After(to) {
			next = to
		}

		sats := []int{satellite}
		if satellite == 0 {
			var err error
			sats, err = reader.Satellites(ctx, day, next)
			if err != nil {
				log.Printf("[%s] Satellite lookup failed: %v", day.Format(dateLayout), err)
				r.failed++
				continue
			}
		}

		for _, sat := range sats {
			s, err := reader.LoadSeries(ctx, sat, day, next)
			if err != nil {
				log.Printf("[%s] GOES-%d load failed: %v", day.Format(dateLayout), sat, err)
				r.failed++
				continue
			}
			if s.Len() == 0 {
				r.logger.Debug("no flux data", zap.Int("satellite", sat), zap.Time("day", day))
				continue
			}
			if err := r.process(ctx, s); err != nil {
				log.Printf("[%s] GOES-%d: %v", day.Format(dateLayout), sat, err)
			}
		}
	}
}

func parseDay(name, value string) time.Time {
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		log.Fatalf("Invalid -%s %q (want YYYY-MM-DD): %v", name, value, err)
	}
	return t
}

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	source := flag.String("source", "clickhouse", "Flux source: clickhouse or file")
	file := flag.String("file", "", "SWPC X-ray JSON file (.json or .json.gz) for -source file")
	satellite := flag.Int("satellite", 0, "GOES satellite number (0 = every satellite found)")
	startDate := flag.String("start", "", "First UTC day to process (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Last UTC day to process, inclusive (YYYY-MM-DD)")
	abundance := flag.String("abundance", "", "coronal or photospheric (default from config)")
	extrapolation := flag.String("extrapolation", "", "extrapolate, clamp or reject (default from config)")
	responseURL := flag.String("response", "", "Response table URL or path (default from config)")
	parquetOut := flag.String("parquet", "", "Write diagnostics to this Parquet file")
	csvOut := flag.String("csv", "", "Write diagnostics to this CSV file (.gz compresses)")
	dryRun := flag.Bool("dry-run", false, "Compute only, do not write to ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	quiet := flag.Bool("quiet", false, "Disable progress output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "xrs-tem v%s - GOES XRS Temperature and Emission Measure\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Derives isothermal temperature (MK) and emission measure (cm^-3)\n")
		fmt.Fprintf(os.Stderr, "from GOES XRS short/long channel fluxes.\n\n")
		fmt.Fprintf(os.Stderr, "Sources:\n")
		fmt.Fprintf(os.Stderr, "  clickhouse  solar.xrs_flux, one UTC day at a time (-start/-end)\n")
		fmt.Fprintf(os.Stderr, "  file        SWPC xrays-*.json files (-file or arguments)\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *abundance != "" {
		cfg.Abundance = *abundance
	}
	if *extrapolation != "" {
		cfg.Extrapolation = *extrapolation
	}
	if *responseURL != "" {
		cfg.ResponseURL = *responseURL
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	abund, err := response.ParseAbundance(cfg.Abundance)
	if err != nil {
		log.Fatalf("Invalid abundance: %v", err)
	}
	policy, err := spline.ParsePolicy(cfg.Extrapolation)
	if err != nil {
		log.Fatalf("Invalid extrapolation: %v", err)
	}

	logger, err := common.NewLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Sync()

	log.Println("=========================================================")
	log.Printf("XRS Temperature v%s", Version)
	log.Println("=========================================================")
	log.Printf("Source:        %s", *source)
	log.Printf("Abundance:     %s", abund)
	log.Printf("Extrapolation: %s", policy)
	log.Printf("Response:      %s", cfg.ResponseLocation())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if m, err = metrics.New(reg); err != nil {
			log.Fatalf("Metrics: %v", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Printf("Metrics:       http://%s/metrics", cfg.MetricsAddr)
	}

	manager := response.NewManager(response.ManagerConfig{
		URL:      cfg.ResponseLocation(),
		SHA256:   cfg.ResponseChecksum(cfg.ResponseLocation()),
		CacheDir: cfg.ResponseCacheDir(),
		Timeout:  cfg.HTTPTimeout,
	}, logger.Named("response"))
	manager.OnLoad = m.TableLoaded

	r := &run{
		id:      uuid.New(),
		calc:    tem.NewCalculator(manager, tem.Options{Abundance: abund, Extrapolation: policy}, logger.Named("tem"), m),
		stats:   common.NewStats(),
		logger:  logger,
		metrics: m,
		exports: make(map[int]*xrs.DiagnosticSeries),
		collect: *parquetOut != "" || *csvOut != "",
	}
	r.stats.SetSilent(*quiet)
	log.Printf("Run ID:        %s", r.id)

	// Fail early if the response table cannot be loaded.
	h, err := manager.Acquire(ctx)
	if err != nil {
		log.Fatalf("Response table: %v", err)
	}
	log.Printf("Table:         %s (%d rows)", h.Table().Version, h.Table().Len())
	h.Release()

	startTime := time.Now()
	r.stats.StartReporter()

	switch *source {
	case "file":
		files := flag.Args()
		if *file != "" {
			files = append([]string{*file}, files...)
		}
		if len(files) == 0 {
			log.Fatal("No files to process (use -file or pass paths)")
		}
		if !*dryRun && !r.collect {
			log.Println("No -parquet or -csv output given; results are only counted")
		}
		runFiles(ctx, r, files)

	case "clickhouse":
		if *startDate == "" {
			log.Fatal("-start is required for -source clickhouse")
		}
		from := parseDay("start", *startDate)
		to := from.AddDate(0, 0, 1)
		if *endDate != "" {
			to = parseDay("end", *endDate).AddDate(0, 0, 1)
		}
		if !to.After(from) {
			log.Fatal("-end must not be before -start")
		}

		log.Printf("Connecting to ClickHouse at %s...", cfg.ClickHouseAddr())
		conn, err := store.Dial(ctx, cfg.ClickHouseAddr(), cfg.ClickHouseDatabase, cfg.ClickHouseUser, cfg.ClickHousePassword)
		if err != nil {
			log.Fatalf("ClickHouse connection failed: %v", err)
		}
		defer conn.Close()

		if !*dryRun {
			if err := store.EnsureSchema(ctx, conn, cfg.ClickHouseDatabase, cfg.FluxTable, cfg.DiagnosticsTable); err != nil {
				log.Fatalf("Schema: %v", err)
			}
			r.writer = store.NewDiagnosticsWriter(conn, cfg.ClickHouseDatabase, cfg.DiagnosticsTable, store.DefaultBatchSize)
		}
		reader := store.NewReader(conn, cfg.ClickHouseDatabase, cfg.FluxTable, logger.Named("store"))
		log.Printf("Range:         %s .. %s", from.Format(dateLayout), to.AddDate(0, 0, -1).Format(dateLayout))

		runClickHouse(ctx, r, reader, *satellite, from, to)
		optimize(ctx, conn, cfg, *dryRun)

	default:
		log.Fatalf("Unknown source %q (want clickhouse or file)", *source)
	}

	r.stats.StopReporter()

	if err := r.export(*parquetOut); err != nil {
		log.Printf("Parquet export failed: %v", err)
		r.failed++
	}
	if err := r.export(*csvOut); err != nil {
		log.Printf("CSV export failed: %v", err)
		r.failed++
	}

	elapsed := time.Since(startTime)
	samples := r.stats.Samples()

	log.Println()
	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	log.Printf("Series:        %d (%d failed)", r.processed, r.failed)
	log.Printf("Samples:       %d", samples)
	log.Printf("Rows Written:  %d", r.stats.RowsWritten())
	log.Printf("Table Loads:   %d", manager.Stats().Loads)
	log.Printf("Elapsed:       %v", elapsed.Round(time.Millisecond))
	if elapsed.Seconds() > 0 {
		log.Printf("Rate:          %.0f samples/sec", float64(samples)/elapsed.Seconds())
	}
	log.Println("=========================================================")

	if r.failed > 0 {
		os.Exit(1)
	}
}

// optimize merges replaced diagnostic rows after a rerun.
func optimize(ctx context.Context, conn *ch.Client, cfg *common.Config, dryRun bool) {
	if dryRun || ctx.Err() != nil {
		return
	}
	table := fmt.Sprintf("%s.%s", cfg.ClickHouseDatabase, cfg.DiagnosticsTable)
	log.Printf("Optimizing %s...", table)
	if err := conn.Do(ctx, ch.Query{Body: fmt.Sprintf("OPTIMIZE TABLE %s FINAL", table)}); err != nil {
		log.Printf("Optimize warning: %v", err)
	}
}
