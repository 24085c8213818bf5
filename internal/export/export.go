// Package export writes diagnostic series to Parquet and CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// Row is one exported diagnostic sample. Small integers are stored as
// int32, the narrowest physical integer Parquet has.
type Row struct {
	Timestamp       int64   `parquet:"timestamp_ms"`
	Satellite       int32   `parquet:"satellite"`
	Temperature     float64 `parquet:"temperature"`
	EmissionMeasure float64 `parquet:"emission_measure"`
	Detector        int32   `parquet:"detector"`
	Flags           int32   `parquet:"flags"`
}

// Time returns the sample time in UTC.
func (r Row) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// Rows flattens a diagnostic series.
func Rows(d *xrs.DiagnosticSeries) []Row {
	rows := make([]Row, len(d.Points))
	for i, p := range d.Points {
		rows[i] = Row{
			Timestamp:       p.Time.UnixMilli(),
			Satellite:       int32(d.Satellite),
			Temperature:     p.TemperatureMK,
			EmissionMeasure: p.EmissionMeasure,
			Detector:        int32(p.Detector),
			Flags:           int32(p.Flags),
		}
	}
	return rows
}

// WriteParquet writes d to path. The file is written to a temp name and
// renamed into place.
func WriteParquet(path string, d *xrs.DiagnosticSeries) error {
	return writeAtomic(path, func(w io.Writer) error {
		pw := parquet.NewGenericWriter[Row](w)
		if _, err := pw.Write(Rows(d)); err != nil {
			pw.Close()
			return fmt.Errorf("write rows: %w", err)
		}
		return pw.Close()
	})
}

var csvHeader = []string{"time", "satellite", "temperature", "emission_measure", "detector", "flags"}

// WriteCSV writes d as CSV with a header line. Times are RFC 3339 UTC.
func WriteCSV(w io.Writer, d *xrs.DiagnosticSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	sat := strconv.Itoa(d.Satellite)
	for _, p := range d.Points {
		rec := []string{
			p.Time.UTC().Format(time.RFC3339Nano),
			sat,
			strconv.FormatFloat(p.TemperatureMK, 'g', -1, 64),
			strconv.FormatFloat(p.EmissionMeasure, 'g', -1, 64),
			strconv.Itoa(int(p.Detector)),
			strconv.Itoa(int(p.Flags)),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes d to path as CSV, gzip-compressed when the path ends
// in .gz.
func WriteCSVFile(path string, d *xrs.DiagnosticSeries) error {
	return writeAtomic(path, func(w io.Writer) error {
		if !strings.HasSuffix(path, ".gz") {
			return WriteCSV(w, d)
		}
		gz := gzip.NewWriter(w)
		if err := WriteCSV(gz, d); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	})
}

// WriteFile picks the format from the extension: .parquet, otherwise CSV.
func WriteFile(path string, d *xrs.DiagnosticSeries) error {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return WriteParquet(path, d)
	}
	return WriteCSVFile(path, d)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}
