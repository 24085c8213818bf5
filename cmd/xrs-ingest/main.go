// xrs-ingest - NOAA SWPC GOES X-ray flux ingestion into ClickHouse
//
// Loads SWPC xrays-*.json feeds (plain or gzip-compressed) into
// solar.xrs_flux. Short (0.05-0.4 nm) and long (0.1-0.8 nm) records are
// paired per satellite and timestamp; rows are deduplicated by the
// ReplacingMergeTree on (satellite, time).
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/xrs-ingest ./cmd/xrs-ingest

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/KI7MT/goes-xrs-tem/internal/common"
	"github.com/KI7MT/goes-xrs-tem/internal/store"
	"github.com/KI7MT/goes-xrs-tem/internal/swpc"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// isFeed reports whether path looks like an SWPC X-ray feed file.
func isFeed(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".gz")
	return strings.HasSuffix(base, ".json") && strings.Contains(base, "xray")
}

func main() {
	cfg := common.DefaultConfig()

	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", cfg.FluxTable, "ClickHouse table")
	sourceDir := flag.String("source-dir", cfg.XRSDataDir(), "X-ray feed source directory")
	batchSize := flag.Int("batch", store.DefaultBatchSize, "Rows per insert batch")
	truncate := flag.Bool("truncate", false, "Truncate table before insert")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "xrs-ingest v%s - GOES X-ray Flux Ingester\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ingests NOAA SWPC GOES X-ray flux feeds into ClickHouse.\n\n")
		fmt.Fprintf(os.Stderr, "Supported formats:\n")
		fmt.Fprintf(os.Stderr, "  - SWPC JSON (xrays-*.json, xrays-*.json.gz)\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	log.Println("=========================================================")
	log.Printf("XRS Ingest v%s", Version)
	log.Println("=========================================================")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	// Schema goes over the native protocol, rows over clickhouse-go batches.
	log.Printf("Connecting to ClickHouse at %s...", *chHost)
	native, err := store.Dial(ctx, *chHost, *chDB, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		log.Fatalf("ClickHouse connection failed: %v", err)
	}
	defer native.Close()

	if err := store.EnsureSchema(ctx, native, *chDB, *chTable, cfg.DiagnosticsTable); err != nil {
		log.Fatalf("Schema: %v", err)
	}

	conn, err := store.OpenBatchConn(ctx, *chHost, *chDB, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		log.Fatalf("ClickHouse batch connection failed: %v", err)
	}
	defer conn.Close()

	tableFQN := fmt.Sprintf("%s.%s", *chDB, *chTable)
	log.Printf("Table: %s", tableFQN)

	if *truncate {
		log.Printf("Truncating table %s...", tableFQN)
		if err := conn.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", tableFQN)); err != nil {
			log.Printf("Truncate warning: %v", err)
		}
	}

	// Discover files
	var files []string
	if len(flag.Args()) > 0 {
		files = flag.Args()
	} else {
		entries, err := os.ReadDir(*sourceDir)
		if err != nil {
			log.Fatalf("Cannot read source directory: %v", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(*sourceDir, e.Name()))
			}
		}
	}

	if len(files) == 0 {
		log.Fatal("No files to process")
	}

	log.Printf("Found %d file(s)", len(files))

	writer := store.NewFluxWriter(conn, *chDB, *chTable, *batchSize)
	startTime := time.Now()
	totalRows := 0
	failed := 0

	for _, filePath := range files {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(filePath)

		if !isFeed(filePath) {
			log.Printf("[%s] Skipping (unknown format)", name)
			continue
		}

		feed, err := swpc.ParseFile(filePath)
		if err != nil {
			log.Printf("[%s] Parse error: %v", name, err)
			failed++
			continue
		}

		fileRows := 0
		for _, s := range feed.Series {
			n, err := writer.Write(ctx, s, name)
			fileRows += n
			if err != nil {
				log.Printf("[%s] GOES-%d insert error: %v", name, s.Satellite, err)
				failed++
				break
			}
		}
		log.Printf("[%s] Inserted %d rows from %d satellite(s) (%d unpaired, %d invalid records)",
			name, fileRows, len(feed.Series), feed.Unpaired, feed.Invalid)
		totalRows += fileRows
	}

	elapsed := time.Since(startTime)

	log.Println()
	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	log.Printf("Total Rows:    %d", totalRows)
	log.Printf("Failed:        %d", failed)
	log.Printf("Elapsed:       %v", elapsed.Round(time.Millisecond))
	log.Printf("Rate:          %.0f rows/sec", float64(totalRows)/elapsed.Seconds())
	log.Println("=========================================================")

	if failed > 0 {
		os.Exit(1)
	}
}
