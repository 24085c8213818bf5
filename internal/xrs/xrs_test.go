package xrs

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func oneSample(obs, origin string, t time.Time, short, long float64) *Series {
	return NewSeries(obs, origin, []Sample{{Time: t, ShortFlux: short, LongFlux: long}}, false, false)
}

func TestParseSatellite(t *testing.T) {
	cases := map[string]int{
		"GOES-15": 15,
		"goes15":  15,
		"G16":     16,
		"17":      17,
		" GOES 6": 6,
	}
	for in, want := range cases {
		got, err := ParseSatellite(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "GOES-R", "GOES-18", "0", "-5", "x"} {
		_, err := ParseSatellite(bad)
		assert.ErrorIs(t, err, ErrInvalidSatellite, bad)
	}
}

func TestValidate(t *testing.T) {
	s := oneSample("GOES-15", "", day(2012, 3, 7), 1e-6, 1e-5)
	require.NoError(t, Validate(s))
	assert.Equal(t, 15, s.Satellite)

	// satellite taken from the observatory name is not written back
	byName := oneSample("GOES-15", "", day(2012, 3, 7), 1e-6, 1e-5)
	byName.Satellite = 0
	require.NoError(t, Validate(byName))
	assert.Equal(t, 0, byName.Satellite)
	n, err := byName.SatelliteNumber()
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	missing := &Series{Observatory: "GOES-15", Times: []time.Time{day(2012, 3, 7)}, Short: s.Short}
	assert.ErrorIs(t, Validate(missing), ErrMissingChannel)

	noSat := oneSample("", "", day(2012, 3, 7), 1e-6, 1e-5)
	assert.ErrorIs(t, Validate(noSat), ErrInvalidSatellite)

	outOfRange := oneSample("GOES-15", "", day(2012, 3, 7), 1e-6, 1e-5)
	outOfRange.Satellite = 18
	assert.ErrorIs(t, Validate(outOfRange), ErrInvalidSatellite)

	empty := NewSeries("GOES-15", "", nil, false, false)
	assert.ErrorIs(t, Validate(empty), ErrEmptySeries)

	wrongUnit := oneSample("GOES-15", "", day(2012, 3, 7), 1e-6, 1e-5)
	wrongUnit.Long.Unit = "erg/s/cm^2"
	assert.ErrorIs(t, Validate(wrongUnit), ErrUnitMismatch)

	short := oneSample("GOES-15", "", day(2012, 3, 7), 1e-6, 1e-5)
	short.Long.Flux = nil
	assert.ErrorIs(t, Validate(short), ErrMissingChannel)
}

func TestMaskQualityPerChannel(t *testing.T) {
	s := NewSeries("GOES-15", "", []Sample{
		{Time: day(2012, 3, 7), ShortFlux: 1e-6, LongFlux: 1e-5, ShortQuality: 1},
		{Time: day(2012, 3, 8), ShortFlux: 2e-6, LongFlux: 2e-5},
		{Time: day(2012, 3, 9), ShortFlux: 3e-6, LongFlux: 3e-5, LongQuality: 4},
	}, true, false)

	f := MaskQuality(s)
	assert.True(t, math.IsNaN(f.Short[0]))
	assert.Equal(t, 1e-5, f.Long[0])
	assert.Equal(t, 2e-6, f.Short[1])
	assert.True(t, math.IsNaN(f.Long[2]))
	assert.Equal(t, []bool{true, false, true}, f.Masked)

	// input untouched
	assert.Equal(t, 1e-6, s.Short.Flux[0])

	ratio, floored := Ratio(f)
	assert.True(t, math.IsNaN(ratio[0]))
	assert.False(t, floored[0])
}

func TestMaskQualityAbsent(t *testing.T) {
	s := oneSample("GOES-15", "", day(2012, 3, 7), 1e-6, 1e-5)
	f := MaskQuality(s)
	assert.Equal(t, []float64{1e-6}, f.Short)
	assert.Equal(t, []bool{false}, f.Masked)
}

func TestCorrectGOES6(t *testing.T) {
	before := oneSample("GOES-6", "", day(1983, 6, 27), 1e-6, 1e-5)
	f := MaskQuality(before)
	Correct(before, f)
	long := 1e-5
	assert.Equal(t, long*(4.43/5.32), f.Long[0])
	assert.Equal(t, 1e-6, f.Short[0])

	after := oneSample("GOES-6", "", day(1983, 6, 29), 1e-6, 1e-5)
	f = MaskQuality(after)
	Correct(after, f)
	assert.Equal(t, 1e-5, f.Long[0])

	other := oneSample("GOES-5", "", day(1983, 6, 27), 1e-6, 1e-5)
	f = MaskQuality(other)
	Correct(other, f)
	assert.Equal(t, 1e-5, f.Long[0])
}

func TestCorrectLegacyScaling(t *testing.T) {
	legacy := oneSample("GOES-10", LegacyOrigin, day(2003, 10, 28), 1e-6, 1e-5)
	f := MaskQuality(legacy)
	Correct(legacy, f)
	long, short := 1e-5, 1e-6
	assert.Equal(t, long/0.7, f.Long[0])
	assert.Equal(t, short/0.85, f.Short[0])

	modern := oneSample("GOES-10", SWPCOrigin, day(2003, 10, 28), 1e-6, 1e-5)
	f = MaskQuality(modern)
	Correct(modern, f)
	assert.Equal(t, 1e-5, f.Long[0])
	assert.Equal(t, 1e-6, f.Short[0])

	// GOES-7 predates the SWPC factors
	early := oneSample("GOES-7", LegacyOrigin, day(1989, 3, 6), 1e-6, 1e-5)
	f = MaskQuality(early)
	Correct(early, f)
	assert.Equal(t, 1e-5, f.Long[0])
}

func TestRatioFloor(t *testing.T) {
	f := Fluxes{
		Short: []float64{5e-11, 5e-11, 1e-6, 1e-6, 1e-6},
		Long:  []float64{1e-5, 1e-9, 1e-5, 0, -1e-6},
	}
	ratio, floored := Ratio(f)
	assert.Equal(t, RatioFloor, ratio[0])
	assert.Equal(t, RatioFloor, ratio[1])
	assert.InDelta(t, 0.1, ratio[2], 1e-15)
	assert.Equal(t, RatioFloor, ratio[3])
	assert.Equal(t, RatioFloor, ratio[4])
	assert.Equal(t, []bool{true, true, false, true, true}, floored)
}

func TestSubsetCopies(t *testing.T) {
	s := NewSeries("GOES-16", "", []Sample{
		{Time: day(2017, 9, 6), ShortFlux: 1, LongFlux: 2, ShortDetector: 1, LongDetector: 1},
		{Time: day(2017, 9, 7), ShortFlux: 3, LongFlux: 4, ShortDetector: 2, LongDetector: 1},
		{Time: day(2017, 9, 8), ShortFlux: 5, LongFlux: 6, ShortDetector: 1, LongDetector: 1},
	}, false, true)

	sub := s.Subset([]int{0, 2})
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, 16, sub.Satellite)
	assert.Equal(t, []float64{1, 5}, sub.Short.Flux)
	assert.Equal(t, []int32{1, 1}, sub.Long.PrimaryDetector)
	assert.Nil(t, sub.Short.Quality)

	sub.Short.Flux[0] = 99
	assert.Equal(t, 1.0, s.Short.Flux[0])
	assert.True(t, sub.HasDetectorSelection())
	assert.Equal(t, int32(2), s.At(1).ShortDetector)
}
