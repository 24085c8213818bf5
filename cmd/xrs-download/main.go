// xrs-download - Download GOES X-ray flux feeds and the XRS response table
//
// Data sources:
//   - NOAA SWPC: GOES primary/secondary X-ray flux JSON (6-hour to 7-day windows)
//   - CHIANTI GOES/XRS response table artifact (-table)
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/xrs-download ./cmd/xrs-download

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/KI7MT/goes-xrs-tem/internal/common"
	"github.com/KI7MT/goes-xrs-tem/internal/response"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// DataSource defines an X-ray data source
type DataSource struct {
	Name     string
	URL      string
	Filename string
	Desc     string
}

const swpcBase = "https://services.swpc.noaa.gov/json/goes"

var sources = []DataSource{
	{
		Name:     "primary_6h",
		URL:      swpcBase + "/primary/xrays-6-hour.json",
		Filename: "xrays-primary-6-hour.json",
		Desc:     "GOES primary X-ray flux (6-hour rolling window)",
	},
	{
		Name:     "primary_1d",
		URL:      swpcBase + "/primary/xrays-1-day.json",
		Filename: "xrays-primary-1-day.json",
		Desc:     "GOES primary X-ray flux (1-day rolling window)",
	},
	{
		Name:     "primary_3d",
		URL:      swpcBase + "/primary/xrays-3-day.json",
		Filename: "xrays-primary-3-day.json",
		Desc:     "GOES primary X-ray flux (3-day rolling window)",
	},
	{
		Name:     "primary_7d",
		URL:      swpcBase + "/primary/xrays-7-day.json",
		Filename: "xrays-primary-7-day.json",
		Desc:     "GOES primary X-ray flux (7-day rolling window)",
	},
	{
		Name:     "secondary_6h",
		URL:      swpcBase + "/secondary/xrays-6-hour.json",
		Filename: "xrays-secondary-6-hour.json",
		Desc:     "GOES secondary X-ray flux (6-hour rolling window)",
	},
	{
		Name:     "secondary_1d",
		URL:      swpcBase + "/secondary/xrays-1-day.json",
		Filename: "xrays-secondary-1-day.json",
		Desc:     "GOES secondary X-ray flux (1-day rolling window)",
	},
	{
		Name:     "secondary_3d",
		URL:      swpcBase + "/secondary/xrays-3-day.json",
		Filename: "xrays-secondary-3-day.json",
		Desc:     "GOES secondary X-ray flux (3-day rolling window)",
	},
	{
		Name:     "secondary_7d",
		URL:      swpcBase + "/secondary/xrays-7-day.json",
		Filename: "xrays-secondary-7-day.json",
		Desc:     "GOES secondary X-ray flux (7-day rolling window)",
	},
}

func downloadFile(url, destPath string, timeout time.Duration, compress bool) error {
	client := &http.Client{Timeout: timeout}
	n, err := common.DownloadFile(context.Background(), client, url, destPath, compress)
	if err != nil {
		return err
	}
	fmt.Printf("  Downloaded %s (%d bytes)\n", filepath.Base(destPath), n)
	return nil
}

func main() {
	cfg := common.DefaultConfig()

	destDir := flag.String("dest", cfg.XRSDataDir(), "Destination directory")
	timeout := flag.Duration("timeout", cfg.HTTPTimeout, "HTTP timeout per download")
	listSources := flag.Bool("list", false, "List available data sources")
	source := flag.String("source", "all", "Source to download ('all', 'none' or a name)")
	compress := flag.Bool("gzip", false, "Store feeds gzip-compressed (.json.gz)")
	table := flag.Bool("table", false, "Also fetch and verify the response table artifact")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "xrs-download v%s - GOES X-ray Data Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads GOES X-ray flux feeds from NOAA SWPC.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nData Sources:\n")
		for _, s := range sources {
			fmt.Fprintf(os.Stderr, "  %-15s %s\n", s.Name, s.Desc)
		}
	}

	flag.Parse()

	if *listSources {
		fmt.Printf("Available X-ray data sources:\n\n")
		for _, s := range sources {
			fmt.Printf("  %-15s %s\n", s.Name, s.Desc)
			fmt.Printf("                  URL: %s\n", s.URL)
			fmt.Printf("                  File: %s\n\n", s.Filename)
		}
		fmt.Printf("  %-15s %s\n", "table", "XRS response table (-table)")
		fmt.Printf("                  URL: %s\n", cfg.ResponseLocation())
		return
	}

	fmt.Println("=========================================================")
	fmt.Printf("XRS Download v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Destination: %s\n", *destDir)
	fmt.Printf("Timeout:     %v\n", *timeout)
	fmt.Println()

	// Create destination directory
	if err := os.MkdirAll(*destDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Cannot create directory: %v\n", err)
		os.Exit(1)
	}

	startTime := time.Now()
	downloaded := 0
	failed := 0

	for _, src := range sources {
		if *source != "all" && *source != src.Name {
			continue
		}

		filename := src.Filename
		if *compress {
			filename += ".gz"
		}
		destPath := filepath.Join(*destDir, filename)
		fmt.Printf("[%s] Downloading from %s...\n", src.Name, src.URL)

		if err := downloadFile(src.URL, destPath, *timeout, *compress); err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			failed++
		} else {
			downloaded++
		}
	}

	if *table {
		fmt.Printf("[table] Fetching %s...\n", cfg.ResponseLocation())
		m := response.NewManager(response.ManagerConfig{
			URL:      cfg.ResponseLocation(),
			SHA256:   cfg.ResponseChecksum(cfg.ResponseLocation()),
			CacheDir: cfg.ResponseCacheDir(),
			Timeout:  *timeout,
		}, nil)
		path, err := m.Fetch(context.Background())
		if err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			failed++
		} else {
			sum, _ := response.FileSHA256(path)
			fmt.Printf("  Cached %s\n  SHA256 %s\n", path, sum)
			downloaded++
		}
	}

	elapsed := time.Since(startTime)

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Download Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Downloaded: %d files\n", downloaded)
	fmt.Printf("Failed:     %d files\n", failed)
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")

	if failed > 0 {
		os.Exit(1)
	}
}
