// Package response holds the precomputed CHIANTI GOES/XRS response table
// and the arithmetic that maps a satellite and detector pair to a table row.
//
// Each row carries, for 101 model temperatures, the expected short and
// long channel fluxes for coronal and photospheric abundances at a fixed
// emission measure of 10^ALOG10EM cm^-3.
package response

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// ErrMalformedTable reports a table row that cannot feed a spline fit.
var ErrMalformedTable = errors.New("malformed response table")

// MinPoints is the smallest model grid a cubic spline can be fitted to.
const MinPoints = 4

// =============================================================================
// Abundance
// =============================================================================

// Abundance selects which pair of model arrays a computation uses.
type Abundance uint8

const (
	Coronal Abundance = iota
	Photospheric
)

// ParseAbundance maps "coronal" / "photospheric" (case-insensitive) to an
// Abundance. The empty string selects Coronal.
func ParseAbundance(s string) (Abundance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coronal":
		return Coronal, nil
	case "photospheric":
		return Photospheric, nil
	}
	return Coronal, fmt.Errorf("%w: %q (want coronal or photospheric)", xrs.ErrInvalidAbundance, s)
}

func (a Abundance) String() string {
	if a == Photospheric {
		return "photospheric"
	}
	return "coronal"
}

// =============================================================================
// Detector Pairs
// =============================================================================

// DetectorPair is the GOES-R active detector combination code.
type DetectorPair uint8

const (
	A1B1 DetectorPair = iota
	A2B1
	A1B2
	A2B2
)

// DetectorPairs lists every pair code in table order.
var DetectorPairs = [4]DetectorPair{A1B1, A2B1, A1B2, A2B2}

// Detectors returns the primary detector numbers (short, long) for the pair.
func (d DetectorPair) Detectors() (short, long int32) {
	switch d {
	case A2B1:
		return 2, 1
	case A1B2:
		return 1, 2
	case A2B2:
		return 2, 2
	}
	return 1, 1
}

func (d DetectorPair) String() string {
	switch d {
	case A1B1:
		return "A1+B1"
	case A2B1:
		return "A2+B1"
	case A1B2:
		return "A1+B2"
	case A2B2:
		return "A2+B2"
	}
	return fmt.Sprintf("DetectorPair(%d)", uint8(d))
}

// =============================================================================
// Index Arithmetic
// =============================================================================

// MaxRows is the number of row slots needed to cover every satellite up to
// xrs.MaxSatellite.
const MaxRows = 15 + 4*(xrs.MaxSatellite-15)

// RowIndex maps a satellite number and detector pair to a zero-based table
// row. GOES 1-15 use row satellite-1 and ignore the detector pair. GOES-R
// satellites occupy four consecutive rows each, starting at row 15:
//
//	row = 15 + 4*(satellite-16) + pair
func RowIndex(satellite int, pair DetectorPair) (int, error) {
	if err := xrs.CheckSatellite(satellite); err != nil {
		return 0, err
	}
	if satellite <= 15 {
		return satellite - 1, nil
	}
	if pair > A2B2 {
		return 0, fmt.Errorf("%w: detector pair code %d", xrs.ErrUnsupportedDetectorTable, pair)
	}
	return 15 + 4*(satellite-16) + int(pair), nil
}

// =============================================================================
// Rows
// =============================================================================

// Row is one response-table record. Rows are immutable once the table is
// loaded and are shared between computations.
type Row struct {
	Index             int
	TempMK            []float64
	ShortCoronal      []float64
	LongCoronal       []float64
	ShortPhotospheric []float64
	LongPhotospheric  []float64
	Log10EM           float64

	ratioCoronal      []float64
	ratioPhotospheric []float64
}

// ModelRatio returns the model short/long ratio for the abundance.
func (r *Row) ModelRatio(a Abundance) []float64 {
	if a == Photospheric {
		return r.ratioPhotospheric
	}
	return r.ratioCoronal
}

// ModelLongFlux returns the model long channel flux for the abundance.
func (r *Row) ModelLongFlux(a Abundance) []float64 {
	if a == Photospheric {
		return r.LongPhotospheric
	}
	return r.LongCoronal
}

// EMScale converts model fluxes to the table's 1e49 cm^-3 emission
// measure convention.
func (r *Row) EMScale() float64 {
	return math.Pow(10, 49-r.Log10EM)
}

func (r *Row) derive() {
	r.ratioCoronal = divide(r.ShortCoronal, r.LongCoronal)
	r.ratioPhotospheric = divide(r.ShortPhotospheric, r.LongPhotospheric)
}

func divide(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		out[i] = num[i] / den[i]
	}
	return out
}

func (r *Row) validate() error {
	n := len(r.TempMK)
	if n < MinPoints {
		return fmt.Errorf("%w: row %d has %d temperatures, need %d", ErrMalformedTable, r.Index, n, MinPoints)
	}
	cols := map[string][]float64{
		"fshort_cor": r.ShortCoronal,
		"flong_cor":  r.LongCoronal,
		"fshort_pho": r.ShortPhotospheric,
		"flong_pho":  r.LongPhotospheric,
	}
	for name, c := range cols {
		if len(c) != n {
			return fmt.Errorf("%w: row %d %s has %d values, temp_mk has %d", ErrMalformedTable, r.Index, name, len(c), n)
		}
		for i, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("%w: row %d %s[%d] = %g", ErrMalformedTable, r.Index, name, i, v)
			}
		}
	}
	for i := 1; i < n; i++ {
		if !(r.TempMK[i] > r.TempMK[i-1]) {
			return fmt.Errorf("%w: row %d temperatures not strictly increasing at %d", ErrMalformedTable, r.Index, i)
		}
	}
	if math.IsNaN(r.Log10EM) || math.IsInf(r.Log10EM, 0) {
		return fmt.Errorf("%w: row %d alog10em = %g", ErrMalformedTable, r.Index, r.Log10EM)
	}
	return nil
}

// =============================================================================
// Table
// =============================================================================

// Table is the full response table. Rows are addressed by RowIndex.
type Table struct {
	Version string // content hash or file name
	rows    []*Row
}

// NewTable builds a table from rows, indexing each row by its position and
// deriving the model ratios. Rows must already be in table order.
func NewTable(version string, rows []*Row) (*Table, error) {
	t := &Table{Version: version, rows: make([]*Row, len(rows))}
	for i, r := range rows {
		if r == nil {
			continue
		}
		r.Index = i
		if err := r.validate(); err != nil {
			return nil, err
		}
		r.derive()
		t.rows[i] = r
	}
	return t, nil
}

// Len returns the number of row slots in the table.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the row at index, or nil when the slot is empty.
func (t *Table) Row(index int) *Row {
	if index < 0 || index >= len(t.rows) {
		return nil
	}
	return t.rows[index]
}

// Resolve returns the row for a satellite and detector pair. It fails with
// ErrUnsupportedDetectorTable when the resolved slot holds no data.
func (t *Table) Resolve(satellite int, pair DetectorPair) (*Row, error) {
	idx, err := RowIndex(satellite, pair)
	if err != nil {
		return nil, err
	}
	r := t.Row(idx)
	if r == nil {
		return nil, fmt.Errorf("%w: GOES-%d %s (row %d of %d)",
			xrs.ErrUnsupportedDetectorTable, satellite, pair, idx, len(t.rows))
	}
	return r, nil
}
