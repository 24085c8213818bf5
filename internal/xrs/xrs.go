// Package xrs provides the GOES X-Ray Sensor (XRS) data model used by the
// temperature and emission-measure engine.
//
// A Series holds the two XRS channels side by side:
//   - Short: XRS-A, 0.05-0.4 nm ("xrsa")
//   - Long:  XRS-B, 0.1-0.8 nm ("xrsb")
//
// Series are columnar. Optional columns (quality flags, primary detector
// selection) are nil when the source did not provide them.
package xrs

import (
	"fmt"
	"time"
)

// =============================================================================
// Satellite and Origin Constants
// =============================================================================

const (
	// MinSatellite and MaxSatellite bound the GOES numbers covered by the
	// response table.
	MinSatellite = 1
	MaxSatellite = 17

	// FirstGOESR is the first dual-detector (GOES-R class) satellite.
	FirstGOESR = 16
)

// LegacyOrigin is the origin tag of the SDAC/GSFC FITS archive. Fluxes from
// that archive still carry the SWPC scaling factors for GOES 8-15.
const LegacyOrigin = "SDAC/GSFC"

// SWPCOrigin tags series decoded from the NOAA SWPC JSON feeds.
const SWPCOrigin = "NOAA/SWPC"

// IsGOESR reports whether the satellite number is GOES-R class.
func IsGOESR(satellite int) bool {
	return satellite >= FirstGOESR
}

// =============================================================================
// Units
// =============================================================================

// Unit names the physical unit of a flux column.
type Unit string

// WattsPerSquareMetre is the only unit the engine accepts. The empty Unit is
// treated as W/m^2.
const WattsPerSquareMetre Unit = "W/m^2"

func (u Unit) compatible() bool {
	return u == "" || u == WattsPerSquareMetre
}

// =============================================================================
// Series
// =============================================================================

// Channel is one XRS channel of a Series.
type Channel struct {
	Flux            []float64 // W/m^2
	Unit            Unit
	Quality         []int32 // 0 = good; nil when absent
	PrimaryDetector []int32 // 1 or 2 (GOES-R); nil when absent
}

// Series is a time-ordered XRS flux series for one satellite.
type Series struct {
	Observatory string // e.g. "GOES-16"
	Satellite   int    // 0 until resolved
	Origin      string // provenance tag, see LegacyOrigin
	Times       []time.Time
	Short       *Channel
	Long        *Channel
}

// Sample is a row view of a Series.
type Sample struct {
	Time          time.Time
	ShortFlux     float64
	LongFlux      float64
	ShortQuality  int32
	LongQuality   int32
	ShortDetector int32
	LongDetector  int32
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Times)
}

// At returns sample i. Absent optional columns read as zero.
func (s *Series) At(i int) Sample {
	sm := Sample{Time: s.Times[i]}
	if s.Short != nil {
		sm.ShortFlux = s.Short.Flux[i]
		if s.Short.Quality != nil {
			sm.ShortQuality = s.Short.Quality[i]
		}
		if s.Short.PrimaryDetector != nil {
			sm.ShortDetector = s.Short.PrimaryDetector[i]
		}
	}
	if s.Long != nil {
		sm.LongFlux = s.Long.Flux[i]
		if s.Long.Quality != nil {
			sm.LongQuality = s.Long.Quality[i]
		}
		if s.Long.PrimaryDetector != nil {
			sm.LongDetector = s.Long.PrimaryDetector[i]
		}
	}
	return sm
}

// HasDetectorSelection reports whether both channels carry primary
// detector columns.
func (s *Series) HasDetectorSelection() bool {
	return s.Short != nil && s.Long != nil &&
		s.Short.PrimaryDetector != nil && s.Long.PrimaryDetector != nil
}

// SatelliteNumber returns Satellite, or the number parsed from Observatory
// when Satellite is not set. The series is left untouched.
func (s *Series) SatelliteNumber() (int, error) {
	if s.Satellite != 0 {
		return s.Satellite, CheckSatellite(s.Satellite)
	}
	return ParseSatellite(s.Observatory)
}

// Subset returns a new series holding the samples at idx, in idx order.
// Column slices are copied; the result shares nothing mutable with s.
func (s *Series) Subset(idx []int) *Series {
	out := &Series{
		Observatory: s.Observatory,
		Satellite:   s.Satellite,
		Origin:      s.Origin,
		Times:       make([]time.Time, len(idx)),
	}
	for j, i := range idx {
		out.Times[j] = s.Times[i]
	}
	out.Short = s.Short.subset(idx)
	out.Long = s.Long.subset(idx)
	return out
}

func (c *Channel) subset(idx []int) *Channel {
	if c == nil {
		return nil
	}
	out := &Channel{
		Flux: make([]float64, len(idx)),
		Unit: c.Unit,
	}
	for j, i := range idx {
		out.Flux[j] = c.Flux[i]
	}
	if c.Quality != nil {
		out.Quality = make([]int32, len(idx))
		for j, i := range idx {
			out.Quality[j] = c.Quality[i]
		}
	}
	if c.PrimaryDetector != nil {
		out.PrimaryDetector = make([]int32, len(idx))
		for j, i := range idx {
			out.PrimaryDetector[j] = c.PrimaryDetector[i]
		}
	}
	return out
}

// NewSeries builds a series from row samples. The quality and detector
// flags select which optional columns are populated.
func NewSeries(observatory, origin string, samples []Sample, withQuality, withDetectors bool) *Series {
	n := len(samples)
	s := &Series{
		Observatory: observatory,
		Origin:      origin,
		Times:       make([]time.Time, n),
		Short:       &Channel{Flux: make([]float64, n), Unit: WattsPerSquareMetre},
		Long:        &Channel{Flux: make([]float64, n), Unit: WattsPerSquareMetre},
	}
	if withQuality {
		s.Short.Quality = make([]int32, n)
		s.Long.Quality = make([]int32, n)
	}
	if withDetectors {
		s.Short.PrimaryDetector = make([]int32, n)
		s.Long.PrimaryDetector = make([]int32, n)
	}
	for i, sm := range samples {
		s.Times[i] = sm.Time
		s.Short.Flux[i] = sm.ShortFlux
		s.Long.Flux[i] = sm.LongFlux
		if withQuality {
			s.Short.Quality[i] = sm.ShortQuality
			s.Long.Quality[i] = sm.LongQuality
		}
		if withDetectors {
			s.Short.PrimaryDetector[i] = sm.ShortDetector
			s.Long.PrimaryDetector[i] = sm.LongDetector
		}
	}
	if n, err := ParseSatellite(observatory); err == nil {
		s.Satellite = n
	}
	return s
}

// =============================================================================
// Diagnostics
// =============================================================================

// Flag marks conditions met while computing a diagnostic sample.
type Flag uint8

const (
	// FlagQualityMasked: a channel quality code was non-zero.
	FlagQualityMasked Flag = 1 << iota
	// FlagRatioFloor: the ratio was replaced by RatioFloor.
	FlagRatioFloor
	// FlagExtrapolated: a spline was evaluated outside its knot domain.
	FlagExtrapolated
)

// Has reports whether all bits in f2 are set.
func (f Flag) Has(f2 Flag) bool {
	return f&f2 == f2
}

// NoDetector marks diagnostics computed without detector routing.
const NoDetector int8 = -1

// Diagnostic is one output sample.
type Diagnostic struct {
	Time            time.Time
	TemperatureMK   float64 // MK
	EmissionMeasure float64 // cm^-3
	Detector        int8    // detector-pair code 0-3, or NoDetector
	Flags           Flag
}

// DiagnosticSeries is the time-indexed engine output.
type DiagnosticSeries struct {
	Satellite    int
	Abundance    string
	TableVersion string
	Points       []Diagnostic
	Warnings     []string
}

// Len returns the number of diagnostic samples.
func (d *DiagnosticSeries) Len() int {
	return len(d.Points)
}

// Temperatures returns the temperature column.
func (d *DiagnosticSeries) Temperatures() []float64 {
	out := make([]float64, len(d.Points))
	for i, p := range d.Points {
		out[i] = p.TemperatureMK
	}
	return out
}

// EmissionMeasures returns the emission measure column.
func (d *DiagnosticSeries) EmissionMeasures() []float64 {
	out := make([]float64, len(d.Points))
	for i, p := range d.Points {
		out[i] = p.EmissionMeasure
	}
	return out
}

// Warnf appends a formatted warning.
func (d *DiagnosticSeries) Warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}
