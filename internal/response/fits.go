package response

import (
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/astrogo/fitsio"
)

// FITS column names of the published response table.
const (
	colTempMK   = "TEMP_MK"
	colShortCor = "FSHORT_COR"
	colLongCor  = "FLONG_COR"
	colShortPho = "FSHORT_PHO"
	colLongPho  = "FLONG_PHO"
	colLog10EM  = "ALOG10EM"
)

// IsFITS reports whether path names a FITS artifact, compressed or not.
func IsFITS(path string) bool {
	name := strings.ToLower(strings.TrimSuffix(path, ".gz"))
	switch filepath.Ext(name) {
	case ".fits", ".fit", ".fts":
		return true
	}
	return false
}

// LoadFITS decodes the response table from the first binary table
// extension of a FITS file. Table row i becomes row slot i.
func LoadFITS(r io.Reader, version string) (*Table, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open FITS response table: %w", err)
	}
	defer f.Close()

	var tbl *fitsio.Table
	for _, hdu := range f.HDUs() {
		if t, ok := hdu.(*fitsio.Table); ok {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, fmt.Errorf("%w: no binary table extension", ErrMalformedTable)
	}

	n := tbl.NumRows()
	if n == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedTable)
	}
	rows, err := tbl.Read(0, n)
	if err != nil {
		return nil, fmt.Errorf("read FITS response table: %w", err)
	}
	defer rows.Close()

	var out []*Row
	for rows.Next() {
		data := make(map[string]interface{})
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("read FITS row %d: %w", len(out), err)
		}
		row, err := fitsRow(data)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedTable, len(out), err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read FITS response table: %w", err)
	}
	return NewTable(version, out)
}

func fitsRow(data map[string]interface{}) (*Row, error) {
	cols := make(map[string]interface{}, len(data))
	for k, v := range data {
		cols[strings.ToUpper(strings.TrimSpace(k))] = v
	}

	vectors := make(map[string][]float64, 5)
	for _, name := range []string{colTempMK, colShortCor, colLongCor, colShortPho, colLongPho} {
		v, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
		fs, err := floats(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		vectors[name] = fs
	}

	em, ok := cols[colLog10EM]
	if !ok {
		return nil, fmt.Errorf("missing column %s", colLog10EM)
	}
	emv, err := floats(em)
	if err != nil || len(emv) != 1 {
		return nil, fmt.Errorf("column %s is not a scalar", colLog10EM)
	}

	return &Row{
		TempMK:            vectors[colTempMK],
		ShortCoronal:      vectors[colShortCor],
		LongCoronal:       vectors[colLongCor],
		ShortPhotospheric: vectors[colShortPho],
		LongPhotospheric:  vectors[colLongPho],
		Log10EM:           emv[0],
	}, nil
}

// floats widens a numeric FITS cell (scalar, fixed array or variable
// length array) to float64.
func floats(v interface{}) ([]float64, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array || rv.Kind() == reflect.Slice {
		out := make([]float64, rv.Len())
		for i := range out {
			f, ok := number(rv.Index(i))
			if !ok {
				return nil, fmt.Errorf("element %d has type %s", i, rv.Index(i).Type())
			}
			out[i] = f
		}
		return out, nil
	}
	f, ok := number(rv)
	if !ok {
		return nil, fmt.Errorf("unsupported type %T", v)
	}
	return []float64{f}, nil
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Interface:
		if v.IsNil() {
			return 0, false
		}
		return number(v.Elem())
	}
	return 0, false
}
