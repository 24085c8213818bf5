// Package responsetest builds synthetic response tables for tests.
//
// The synthetic model uses a ratio that rises monotonically with
// temperature, r(T) = a*exp(-b/T), and a long channel flux proportional to
// T^2, which is close enough to the CHIANTI curves to exercise the engine.
package responsetest

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/astrogo/fitsio"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
)

// Points is the number of model temperatures per row.
const Points = 41

// Rows covers GOES 1-15 plus four detector pairs for GOES 16 and 17.
const Rows = response.MaxRows

// Temperatures returns the model temperature grid in MK (1-50 MK,
// logarithmic).
func Temperatures() []float64 {
	t := make([]float64, Points)
	for i := range t {
		t[i] = math.Pow(10, math.Log10(50)*float64(i)/float64(Points-1))
	}
	return t
}

// NewRow builds the synthetic row for slot index.
func NewRow(index int) *response.Row {
	temps := Temperatures()
	gain := 1 + 0.01*float64(index)
	r := &response.Row{
		TempMK:            temps,
		ShortCoronal:      make([]float64, Points),
		LongCoronal:       make([]float64, Points),
		ShortPhotospheric: make([]float64, Points),
		LongPhotospheric:  make([]float64, Points),
		Log10EM:           49,
	}
	if index%2 == 1 {
		r.Log10EM = 55
	}
	for i, t := range temps {
		long := 1e-6 * t * t * gain
		r.LongCoronal[i] = long
		r.ShortCoronal[i] = long * 0.5 * math.Exp(-20/t)
		r.LongPhotospheric[i] = long * 0.9
		r.ShortPhotospheric[i] = long * 0.9 * 0.45 * math.Exp(-19/t)
	}
	return r
}

// Table returns a complete synthetic table. Panics only on programming
// errors in the builder.
func Table() *response.Table {
	rows := make([]*response.Row, Rows)
	for i := range rows {
		rows[i] = NewRow(i)
	}
	t, err := response.NewTable("synthetic", rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Sparse returns a table whose slots listed in missing are empty.
func Sparse(missing ...int) *response.Table {
	rows := make([]*response.Row, Rows)
	for i := range rows {
		rows[i] = NewRow(i)
	}
	for _, i := range missing {
		rows[i] = nil
	}
	t, err := response.NewTable("synthetic-sparse", rows)
	if err != nil {
		panic(err)
	}
	return t
}

// fitsRecord is one row of the FITS binary table written by WriteFITS.
type fitsRecord struct {
	TempMK   [Points]float64 `fits:"TEMP_MK"`
	ShortCor [Points]float64 `fits:"FSHORT_COR"`
	LongCor  [Points]float64 `fits:"FLONG_COR"`
	ShortPho [Points]float64 `fits:"FSHORT_PHO"`
	LongPho  [Points]float64 `fits:"FLONG_PHO"`
	Log10EM  float64         `fits:"ALOG10EM"`
}

// WriteFITS writes t in the layout of the published response table: an
// empty primary HDU followed by one binary table row per slot. Every slot
// must be filled and hold Points temperatures.
func WriteFITS(w io.Writer, t *response.Table) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return err
	}
	if err := f.Write(phdu); err != nil {
		return err
	}

	vec := fmt.Sprintf("%dD", Points)
	cols := []fitsio.Column{
		{Name: "TEMP_MK", Format: vec},
		{Name: "FSHORT_COR", Format: vec},
		{Name: "FLONG_COR", Format: vec},
		{Name: "FSHORT_PHO", Format: vec},
		{Name: "FLONG_PHO", Format: vec},
		{Name: "ALOG10EM", Format: "D"},
	}
	tbl, err := fitsio.NewTable("GOES_RESP", cols, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()

	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r == nil || len(r.TempMK) != Points {
			return errors.New("responsetest: FITS tables need every slot filled")
		}
		var rec fitsRecord
		copy(rec.TempMK[:], r.TempMK)
		copy(rec.ShortCor[:], r.ShortCoronal)
		copy(rec.LongCor[:], r.LongCoronal)
		copy(rec.ShortPho[:], r.ShortPhotospheric)
		copy(rec.LongPho[:], r.LongPhotospheric)
		rec.Log10EM = r.Log10EM
		if err := tbl.Write(&rec); err != nil {
			return err
		}
	}
	return f.Write(tbl)
}
