package spline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubic(x float64) float64 { return x*x*x - 2*x*x + x + 1 }

func cubicKnots() ([]float64, []float64) {
	xs := []float64{0, 0.5, 1.25, 2, 3, 4.5, 5}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = cubic(x)
	}
	return xs, ys
}

func TestKnotsAreExact(t *testing.T) {
	xs := []float64{0.01, 0.03, 0.07, 0.12, 0.2, 0.35}
	ys := []float64{1.5, 2.25, 4, 7.5, 12, 30}
	s, err := Fit(xs, ys, Extrapolate)
	require.NoError(t, err)
	for i := range xs {
		got, ext := s.At(xs[i])
		assert.False(t, ext)
		assert.Equal(t, ys[i], got, "knot %d", i)
	}
}

func TestReproducesCubic(t *testing.T) {
	xs, ys := cubicKnots()
	s, err := Fit(xs, ys, Extrapolate)
	require.NoError(t, err)

	for _, x := range []float64{0.1, 0.7, 1.9, 2.5, 3.3, 4.9} {
		got, ext := s.At(x)
		assert.False(t, ext)
		assert.InDelta(t, cubic(x), got, 1e-9, "x=%g", x)
	}
	for _, x := range []float64{-1, -0.25, 5.5, 7} {
		got, ext := s.At(x)
		assert.True(t, ext)
		assert.InDelta(t, cubic(x), got, 1e-6*math.Max(1, math.Abs(cubic(x))), "x=%g", x)
	}
}

func TestUnsortedKnots(t *testing.T) {
	xs, ys := cubicKnots()
	rx := []float64{xs[3], xs[0], xs[6], xs[1], xs[5], xs[2], xs[4]}
	ry := []float64{ys[3], ys[0], ys[6], ys[1], ys[5], ys[2], ys[4]}
	s, err := Fit(rx, ry, Extrapolate)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Min())
	assert.Equal(t, 5.0, s.Max())

	got, _ := s.At(xs[2])
	assert.Equal(t, ys[2], got)
}

func TestClampPolicy(t *testing.T) {
	xs, ys := cubicKnots()
	s, err := Fit(xs, ys, Clamp)
	require.NoError(t, err)

	got, ext := s.At(-3)
	assert.True(t, ext)
	assert.Equal(t, ys[0], got)

	got, ext = s.At(100)
	assert.True(t, ext)
	assert.Equal(t, ys[len(ys)-1], got)
}

func TestRejectPolicy(t *testing.T) {
	xs, ys := cubicKnots()
	s, err := Fit(xs, ys, Reject)
	require.NoError(t, err)

	got, ext := s.At(5.01)
	assert.True(t, ext)
	assert.True(t, math.IsNaN(got))

	got, ext = s.At(5)
	assert.False(t, ext)
	assert.Equal(t, ys[len(ys)-1], got)
}

func TestNaNInput(t *testing.T) {
	xs, ys := cubicKnots()
	for _, p := range []Policy{Extrapolate, Clamp, Reject} {
		s, err := Fit(xs, ys, p)
		require.NoError(t, err)
		got, ext := s.At(math.NaN())
		assert.True(t, math.IsNaN(got), p.String())
		assert.False(t, ext)
	}
}

func TestFitErrors(t *testing.T) {
	_, err := Fit([]float64{1, 2, 3}, []float64{1, 2, 3}, Extrapolate)
	assert.ErrorIs(t, err, ErrTooFewKnots)

	_, err = Fit([]float64{1, 2, 2, 3}, []float64{1, 2, 3, 4}, Extrapolate)
	assert.ErrorIs(t, err, ErrNotIncreasing)

	_, err = Fit([]float64{1, 2, math.NaN(), 3}, []float64{1, 2, 3, 4}, Extrapolate)
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = Fit([]float64{1, 2, 3, 4}, []float64{1, 2}, Extrapolate)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": Extrapolate, "Clamp": Clamp, "reject": Reject, " extrapolate ": Extrapolate} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("wrap")
	assert.Error(t, err)
}

func TestKnotsSpanningDecades(t *testing.T) {
	// ratio-like abscissae from 1e-9 to 1, ten decades
	xs := make([]float64, 10)
	ys := make([]float64, 10)
	for i := range xs {
		xs[i] = math.Pow(10, float64(i-9))
		ys[i] = cubic(xs[i])
	}
	s, err := Fit(xs, ys, Extrapolate)
	require.NoError(t, err)

	for i := range xs {
		got, _ := s.At(xs[i])
		assert.Equal(t, ys[i], got, "knot %d", i)
	}
	for _, x := range []float64{3e-9, 5e-6, 0.02, 0.5, 0.9} {
		got, ext := s.At(x)
		assert.False(t, ext)
		assert.InDelta(t, cubic(x), got, 1e-8, "x=%g", x)
	}
}

func TestResponseLikeCurve(t *testing.T) {
	// r(T) = 0.5*exp(-20/T) on a logarithmic 1-50 MK grid
	const n = 41
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		temp := math.Pow(10, math.Log10(50)*float64(i)/float64(n-1))
		xs[i] = 0.5 * math.Exp(-20/temp)
		ys[i] = temp
	}
	require.Less(t, xs[0], 1e-8)

	s, err := Fit(xs, ys, Extrapolate)
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		mid := (xs[i-1] + xs[i]) / 2
		got, ext := s.At(mid)
		assert.False(t, ext)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0), "x=%g", mid)
	}
	got, _ := s.At(xs[20])
	assert.Equal(t, ys[20], got)
}

func TestSolveTridiagonalPivots(t *testing.T) {
	// first row needs a swap: |diag[0]| < |sub[0]|
	sub := []float64{4, 1, 2}
	diag := []float64{1, 1, 3, 1}
	sup := []float64{2, 5, 1}
	want := []float64{1, -2, 3, 0.5}

	b := []float64{
		diag[0]*want[0] + sup[0]*want[1],
		sub[0]*want[0] + diag[1]*want[1] + sup[1]*want[2],
		sub[1]*want[1] + diag[2]*want[2] + sup[2]*want[3],
		sub[2]*want[2] + diag[3]*want[3],
	}
	require.NoError(t, solveTridiagonal(sub, diag, sup, b))
	for i := range want {
		assert.InDelta(t, want[i], b[i], 1e-12, "x[%d]", i)
	}
}

func TestSolveTridiagonalSingular(t *testing.T) {
	err := solveTridiagonal([]float64{0, 0}, []float64{0, 1, 1}, []float64{1, 1}, []float64{1, 1, 1})
	assert.ErrorIs(t, err, ErrSingular)
}
