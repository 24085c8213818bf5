package xrs

import (
	"math"
	"time"
)

// =============================================================================
// Calibration Constants
// =============================================================================

const (
	// GOES-6 long channel scaling before the 1983-06-28 recalibration.
	goes6LongScale = 4.43 / 5.32

	// SWPC scaling factors baked into the SDAC archive for GOES 8-15.
	swpcLongScale  = 0.7
	swpcShortScale = 0.85

	// Fluxes below these thresholds are instrumentally unreliable.
	ShortFluxFloor = 1.0e-10 // W/m^2
	LongFluxFloor  = 3.0e-8  // W/m^2

	// RatioFloor replaces the short/long ratio of unreliable samples.
	RatioFloor = 0.003
)

// GOES6Cutoff is the last instant at which the GOES-6 long channel
// correction applies.
var GOES6Cutoff = time.Date(1983, time.June, 28, 0, 0, 0, 0, time.UTC)

// Fluxes holds working copies of the two channels.
type Fluxes struct {
	Short  []float64
	Long   []float64
	Masked []bool // quality-masked samples
}

// MaskQuality copies the channel fluxes and replaces with NaN every sample
// whose own channel quality code is non-zero. Channels without quality
// codes are copied unchanged.
func MaskQuality(s *Series) Fluxes {
	n := s.Len()
	f := Fluxes{
		Short:  append([]float64(nil), s.Short.Flux...),
		Long:   append([]float64(nil), s.Long.Flux...),
		Masked: make([]bool, n),
	}
	if q := s.Short.Quality; q != nil {
		for i := 0; i < n; i++ {
			if q[i] != 0 {
				f.Short[i] = math.NaN()
				f.Masked[i] = true
			}
		}
	}
	if q := s.Long.Quality; q != nil {
		for i := 0; i < n; i++ {
			if q[i] != 0 {
				f.Long[i] = math.NaN()
				f.Masked[i] = true
			}
		}
	}
	return f
}

// Correct applies satellite and era specific scaling in place:
//   - GOES-6, samples at or before GOES6Cutoff: long *= 4.43/5.32
//   - GOES 8-15 from the legacy archive: long /= 0.7, short /= 0.85
func Correct(s *Series, f Fluxes) {
	switch {
	case s.Satellite == 6:
		for i, t := range s.Times {
			if !t.After(GOES6Cutoff) {
				f.Long[i] *= goes6LongScale
			}
		}
	case s.Origin == LegacyOrigin && s.Satellite >= 8 && s.Satellite < FirstGOESR:
		for i := range f.Long {
			f.Long[i] /= swpcLongScale
			f.Short[i] /= swpcShortScale
		}
	}
}

// Ratio returns short/long for every sample. Samples with short flux below
// ShortFluxFloor or long flux below LongFluxFloor get RatioFloor and are
// reported in floored; the division is never evaluated for them. NaN
// fluxes fail both threshold tests and yield a NaN ratio.
func Ratio(f Fluxes) (ratio []float64, floored []bool) {
	n := len(f.Short)
	ratio = make([]float64, n)
	floored = make([]bool, n)
	for i := 0; i < n; i++ {
		if f.Short[i] < ShortFluxFloor || f.Long[i] < LongFluxFloor {
			ratio[i] = RatioFloor
			floored[i] = true
			continue
		}
		// long >= LongFluxFloor > 0 here, or NaN
		ratio[i] = f.Short[i] / f.Long[i]
	}
	return ratio, floored
}
