package response

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// record matches the Parquet schema of the response-table artifact.
type record struct {
	Index     int32     `parquet:"index"`
	TempMK    []float64 `parquet:"temp_mk"`
	FShortCor []float64 `parquet:"fshort_cor"`
	FLongCor  []float64 `parquet:"flong_cor"`
	FShortPho []float64 `parquet:"fshort_pho"`
	FLongPho  []float64 `parquet:"flong_pho"`
	Log10EM   float64   `parquet:"alog10em"`
}

const readChunk = 32

// Load decodes a Parquet response table. Records may appear in any order;
// gaps in the index sequence become empty row slots.
func Load(r io.ReaderAt, size int64, version string) (*Table, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open response table: %w", err)
	}

	reader := parquet.NewGenericReader[record](pf)
	defer reader.Close()

	var records []record
	buf := make([]record, readChunk)
	for {
		// rows keep the slices handed out by the previous read
		clear(buf)
		n, err := reader.Read(buf)
		records = append(records, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read response table: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedTable)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	last := int(records[len(records)-1].Index)
	if records[0].Index < 0 {
		return nil, fmt.Errorf("%w: negative row index %d", ErrMalformedTable, records[0].Index)
	}
	if last >= MaxRows {
		return nil, fmt.Errorf("%w: row index %d beyond last slot %d", ErrMalformedTable, last, MaxRows-1)
	}

	rows := make([]*Row, last+1)
	for _, rec := range records {
		if rows[rec.Index] != nil {
			return nil, fmt.Errorf("%w: duplicate row index %d", ErrMalformedTable, rec.Index)
		}
		rows[rec.Index] = &Row{
			TempMK:            rec.TempMK,
			ShortCoronal:      rec.FShortCor,
			LongCoronal:       rec.FLongCor,
			ShortPhotospheric: rec.FShortPho,
			LongPhotospheric:  rec.FLongPho,
			Log10EM:           rec.Log10EM,
		}
	}
	return NewTable(version, rows)
}

// Write encodes a table as a Parquet artifact. Empty slots are skipped.
func Write(w io.Writer, t *Table) error {
	records := make([]record, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r == nil {
			continue
		}
		records = append(records, record{
			Index:     int32(i),
			TempMK:    r.TempMK,
			FShortCor: r.ShortCoronal,
			FLongCor:  r.LongCoronal,
			FShortPho: r.ShortPhotospheric,
			FLongPho:  r.LongPhotospheric,
			Log10EM:   r.Log10EM,
		})
	}

	pw := parquet.NewGenericWriter[record](w)
	if _, err := pw.Write(records); err != nil {
		pw.Close()
		return fmt.Errorf("write response table: %w", err)
	}
	return pw.Close()
}
