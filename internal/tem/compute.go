// Package tem derives isothermal temperature and volume emission measure
// from GOES XRS fluxes using a precomputed CHIANTI response table.
//
// For one response row the pipeline is:
//
//	quality mask -> flux correction -> short/long ratio
//	ratio --spline--> temperature (MK)
//	temperature --spline--> model long flux -> emission measure
//
// GOES-R series carrying detector selection are split by detector pair and
// each segment uses its own row (see router.go).
package tem

import (
	"fmt"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/spline"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// emUnit converts table emission measures (units of 1e49 cm^-3) to cm^-3.
const emUnit = 1e49

// Options select the response model.
type Options struct {
	Abundance     response.Abundance
	Extrapolation spline.Policy
}

// curves holds the two splines fitted to one response row.
type curves struct {
	temperature *spline.Spline // model ratio -> temperature
	longFlux    *spline.Spline // temperature -> scaled model long flux
}

func fitCurves(row *response.Row, opts Options) (*curves, error) {
	temp, err := spline.Fit(row.ModelRatio(opts.Abundance), row.TempMK, opts.Extrapolation)
	if err != nil {
		return nil, fmt.Errorf("row %d ratio curve: %w", row.Index, err)
	}

	model := row.ModelLongFlux(opts.Abundance)
	scale := row.EMScale()
	scaled := make([]float64, len(model))
	for i, v := range model {
		scaled[i] = v * scale
	}
	flux, err := spline.Fit(row.TempMK, scaled, opts.Extrapolation)
	if err != nil {
		return nil, fmt.Errorf("row %d flux curve: %w", row.Index, err)
	}
	return &curves{temperature: temp, longFlux: flux}, nil
}

// computeSegment runs the single-row pipeline over s. The series must
// already be validated. detector is stamped on every output sample.
func computeSegment(row *response.Row, s *xrs.Series, opts Options, detector int8) ([]xrs.Diagnostic, error) {
	c, err := fitCurves(row, opts)
	if err != nil {
		return nil, err
	}

	f := xrs.MaskQuality(s)
	xrs.Correct(s, f)
	ratio, floored := xrs.Ratio(f)

	out := make([]xrs.Diagnostic, s.Len())
	for i := range out {
		d := xrs.Diagnostic{Time: s.Times[i], Detector: detector}
		if f.Masked[i] {
			d.Flags |= xrs.FlagQualityMasked
		}
		if floored[i] {
			d.Flags |= xrs.FlagRatioFloor
		}

		temp, extT := c.temperature.At(ratio[i])
		denom, extF := c.longFlux.At(temp)
		if extT || extF {
			d.Flags |= xrs.FlagExtrapolated
		}

		d.TemperatureMK = temp
		d.EmissionMeasure = f.Long[i] / denom * emUnit
		out[i] = d
	}
	return out, nil
}
