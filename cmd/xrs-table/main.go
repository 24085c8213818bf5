// xrs-table - Inspect the GOES/XRS CHIANTI response table
//
// Prints the row layout of a response-table artifact (satellite and
// detector pair per row, temperature and ratio domains) or the full model
// grid of one row. With -convert the loaded table (FITS or Parquet) is
// written out as a Parquet artifact.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/xrs-table ./cmd/xrs-table

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/KI7MT/goes-xrs-tem/internal/common"
	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// parseDetector accepts a pair name (A2B1, A2+B1) or its code 0-3.
func parseDetector(s string) (response.DetectorPair, error) {
	norm := strings.ToUpper(strings.ReplaceAll(s, "+", ""))
	for _, p := range response.DetectorPairs {
		if strings.ReplaceAll(p.String(), "+", "") == norm {
			return p, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(response.DetectorPairs) {
		return response.DetectorPairs[n], nil
	}
	return 0, fmt.Errorf("unknown detector pair %q (want A1B1, A2B1, A1B2, A2B2 or 0-3)", s)
}

// rowLabel names the satellite and detector pair stored at index.
func rowLabel(index int) string {
	if index < 15 {
		return fmt.Sprintf("GOES-%d", index+1)
	}
	sat := 16 + (index-15)/4
	pair := response.DetectorPairs[(index-15)%4]
	return fmt.Sprintf("GOES-%d %s", sat, pair)
}

func printLayout(t *response.Table) {
	fmt.Printf("%-5s %-16s %-15s %-23s %-23s %s\n", "Row", "Satellite", "T (MK)", "Ratio (coronal)", "Ratio (photospheric)", "log10 EM")
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r == nil {
			fmt.Printf("%-5d %-16s (empty)\n", i, rowLabel(i))
			continue
		}
		rc := r.ModelRatio(response.Coronal)
		rp := r.ModelRatio(response.Photospheric)
		fmt.Printf("%-5d %-16s %6.2f - %6.2f  %9.3e - %9.3e  %9.3e - %9.3e  %.1f\n",
			i, rowLabel(i),
			r.TempMK[0], r.TempMK[len(r.TempMK)-1],
			slices.Min(rc), slices.Max(rc),
			slices.Min(rp), slices.Max(rp),
			r.Log10EM)
	}
}

// convertTable writes t as a Parquet artifact at path through a temp file
// and returns the SHA-256 of the result.
func convertTable(t *response.Table, path string) (string, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create file failed: %w", err)
	}
	if err := response.Write(f, t); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename failed: %w", err)
	}
	return response.FileSHA256(path)
}

func printRow(r *response.Row) {
	fmt.Printf("Row %d: %s, %d temperatures, log10 EM %.1f\n\n", r.Index, rowLabel(r.Index), len(r.TempMK), r.Log10EM)
	fmt.Printf("%10s %12s %12s %12s %12s %12s\n", "T (MK)", "short cor", "long cor", "short pho", "long pho", "ratio cor")
	rc := r.ModelRatio(response.Coronal)
	for i, temp := range r.TempMK {
		fmt.Printf("%10.3f %12.4e %12.4e %12.4e %12.4e %12.4e\n",
			temp, r.ShortCoronal[i], r.LongCoronal[i], r.ShortPhotospheric[i], r.LongPhotospheric[i], rc[i])
	}
}

func main() {
	cfg := common.DefaultConfig()

	file := flag.String("file", cfg.ResponseLocation(), "Response table artifact (path or URL)")
	satellite := flag.Int("satellite", 0, "Print the row for this GOES satellite")
	detector := flag.String("detector", "A1B1", "Detector pair for GOES-16 and later")
	convert := flag.String("convert", "", "Write the table as a Parquet artifact to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "xrs-table v%s - XRS Response Table Inspector\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Without -satellite, prints the row layout of the table.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	m := response.NewManager(response.ManagerConfig{
		URL:      *file,
		SHA256:   cfg.ResponseChecksum(*file),
		CacheDir: cfg.ResponseCacheDir(),
		Timeout:  cfg.HTTPTimeout,
	}, nil)
	h, err := m.Acquire(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer h.Release()
	t := h.Table()

	fmt.Println("=========================================================")
	fmt.Printf("XRS Response Table v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Source:  %s\n", *file)
	fmt.Printf("Version: %s\n", t.Version)
	fmt.Printf("Rows:    %d (GOES-%d to GOES-%d)\n", t.Len(), xrs.MinSatellite, xrs.MaxSatellite)
	fmt.Println()

	if *convert != "" {
		sum, err := convertTable(t, *convert)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\nSHA256 %s\n", *convert, sum)
		return
	}

	if *satellite == 0 {
		printLayout(t)
		return
	}

	pair, err := parseDetector(*detector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	r, err := t.Resolve(*satellite, pair)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printRow(r)
}
