// Package spline fits not-a-knot cubic splines and evaluates them with an
// explicit policy for queries outside the knot domain.
//
// Knot slopes come from a row-equilibrated tridiagonal solve with partial
// pivoting, so knots spanning many decades fit as well as evenly spaced
// ones. Evaluation is gonum's piecewise cubic.
package spline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/interp"
)

var (
	ErrTooFewKnots   = errors.New("spline needs at least 4 knots")
	ErrNotIncreasing = errors.New("spline knots must be strictly increasing")
	ErrNonFinite     = errors.New("spline knot is not finite")
	ErrSingular      = errors.New("spline system is singular")
)

// MinKnots is the smallest knot count accepted by Fit.
const MinKnots = 4

// Policy decides what At returns outside [Min, Max].
type Policy uint8

const (
	// Extrapolate continues the end cubic segment.
	Extrapolate Policy = iota
	// Clamp returns the boundary value.
	Clamp
	// Reject returns NaN.
	Reject
)

func (p Policy) String() string {
	switch p {
	case Extrapolate:
		return "extrapolate"
	case Clamp:
		return "clamp"
	case Reject:
		return "reject"
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// ParsePolicy accepts the names printed by String. Empty means Extrapolate.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "extrapolate":
		return Extrapolate, nil
	case "clamp":
		return Clamp, nil
	case "reject", "nan":
		return Reject, nil
	}
	return 0, fmt.Errorf("unknown extrapolation policy %q", s)
}

// Spline is an immutable fitted cubic. Safe for concurrent use.
type Spline struct {
	fit    interp.PiecewiseCubic
	xs     []float64
	policy Policy

	// end segments sampled at four points, used for extrapolation
	left, right [4][2]float64
}

// Fit builds a spline through (xs[i], ys[i]). Knots are sorted by x first,
// so the caller may pass them in any order.
func Fit(xs, ys []float64, policy Policy) (*Spline, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("spline: %d xs but %d ys", len(xs), len(ys))
	}
	if len(xs) < MinKnots {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewKnots, len(xs))
	}

	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	for i, j := range idx {
		sx[i], sy[i] = xs[j], ys[j]
		if math.IsNaN(sx[i]) || math.IsInf(sx[i], 0) || math.IsNaN(sy[i]) || math.IsInf(sy[i], 0) {
			return nil, fmt.Errorf("%w: knot %d", ErrNonFinite, j)
		}
		if i > 0 && sx[i] <= sx[i-1] {
			return nil, fmt.Errorf("%w: duplicate x %g", ErrNotIncreasing, sx[i])
		}
	}

	slopes, err := notAKnotSlopes(sx, sy)
	if err != nil {
		return nil, err
	}
	s := &Spline{xs: sx, policy: policy}
	s.fit.FitWithDerivatives(sx, sy, slopes)
	n := len(sx)
	s.left = s.sampleSegment(sx[0], sx[1])
	s.right = s.sampleSegment(sx[n-2], sx[n-1])
	return s, nil
}

// notAKnotSlopes returns the knot first derivatives of the not-a-knot
// cubic spline through (xs, ys). Each equation is written in terms of the
// local interval widths:
//
//	h[i]*m[i-1] + 2(h[i-1]+h[i])*m[i] + h[i-1]*m[i+1] = 3(h[i]*d[i-1] + h[i-1]*d[i])
//
// with h the widths and d the secant slopes. The two end rows force a
// continuous third derivative across the second and second-to-last knots.
func notAKnotSlopes(xs, ys []float64) ([]float64, error) {
	n := len(xs)
	h := make([]float64, n-1)
	d := make([]float64, n-1)
	for i := range h {
		h[i] = xs[i+1] - xs[i]
		d[i] = (ys[i+1] - ys[i]) / h[i]
	}

	sub := make([]float64, n-1) // sub[i] multiplies m[i] in row i+1
	diag := make([]float64, n)
	sup := make([]float64, n-1) // sup[i] multiplies m[i+1] in row i
	rhs := make([]float64, n)

	w := xs[2] - xs[0]
	diag[0], sup[0] = h[1], w
	rhs[0] = ((h[0]+2*w)*h[1]*d[0] + h[0]*h[0]*d[1]) / w

	for i := 1; i < n-1; i++ {
		sub[i-1] = h[i]
		diag[i] = 2 * (h[i-1] + h[i])
		sup[i] = h[i-1]
		rhs[i] = 3 * (h[i]*d[i-1] + h[i-1]*d[i])
	}

	w = xs[n-1] - xs[n-3]
	sub[n-2], diag[n-1] = w, h[n-3]
	rhs[n-1] = (h[n-2]*h[n-2]*d[n-3] + (2*w+h[n-2])*h[n-3]*d[n-2]) / w

	// equilibrate each row by its largest coefficient
	for i := 0; i < n; i++ {
		scale := math.Abs(diag[i])
		if i > 0 {
			scale = math.Max(scale, math.Abs(sub[i-1]))
		}
		if i < n-1 {
			scale = math.Max(scale, math.Abs(sup[i]))
		}
		if scale == 0 {
			return nil, fmt.Errorf("%w: row %d", ErrSingular, i)
		}
		diag[i] /= scale
		rhs[i] /= scale
		if i > 0 {
			sub[i-1] /= scale
		}
		if i < n-1 {
			sup[i] /= scale
		}
	}

	if err := solveTridiagonal(sub, diag, sup, rhs); err != nil {
		return nil, err
	}
	return rhs, nil
}

// solveTridiagonal solves the system in place by Gaussian elimination with
// partial pivoting; the solution overwrites b. sub, diag and sup are
// destroyed.
func solveTridiagonal(sub, diag, sup, b []float64) error {
	n := len(diag)
	fill := make([]float64, n) // second superdiagonal created by row swaps

	for i := 0; i < n-1; i++ {
		if math.Abs(diag[i]) >= math.Abs(sub[i]) {
			if diag[i] == 0 {
				return fmt.Errorf("%w: zero pivot at %d", ErrSingular, i)
			}
			f := sub[i] / diag[i]
			diag[i+1] -= f * sup[i]
			b[i+1] -= f * b[i]
			continue
		}

		// swap rows i and i+1
		f := diag[i] / sub[i]
		diag[i] = sub[i]
		next := diag[i+1]
		diag[i+1] = sup[i] - f*next
		if i < n-2 {
			fill[i] = sup[i+1]
			sup[i+1] = -f * fill[i]
		}
		sup[i] = next
		b[i], b[i+1] = b[i+1], b[i]-f*b[i+1]
	}
	if diag[n-1] == 0 {
		return fmt.Errorf("%w: zero pivot at %d", ErrSingular, n-1)
	}

	b[n-1] /= diag[n-1]
	b[n-2] = (b[n-2] - sup[n-2]*b[n-1]) / diag[n-2]
	for i := n - 3; i >= 0; i-- {
		b[i] = (b[i] - sup[i]*b[i+1] - fill[i]*b[i+2]) / diag[i]
	}
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: slope %d is %g", ErrSingular, i, v)
		}
	}
	return nil
}

func (s *Spline) sampleSegment(x0, x1 float64) [4][2]float64 {
	var pts [4][2]float64
	h := x1 - x0
	for k, x := range [4]float64{x0, x0 + h/3, x0 + 2*h/3, x1} {
		pts[k] = [2]float64{x, s.fit.Predict(x)}
	}
	return pts
}

// Min and Max bound the knot domain.
func (s *Spline) Min() float64 { return s.xs[0] }
func (s *Spline) Max() float64 { return s.xs[len(s.xs)-1] }

// Policy returns the out-of-domain policy.
func (s *Spline) Policy() Policy { return s.policy }

// At evaluates the spline at x. The second result reports whether x lay
// outside the knot domain. NaN input yields NaN.
func (s *Spline) At(x float64) (float64, bool) {
	if math.IsNaN(x) {
		return math.NaN(), false
	}
	lo, hi := s.Min(), s.Max()
	if x >= lo && x <= hi {
		return s.fit.Predict(x), false
	}

	switch s.policy {
	case Clamp:
		return s.fit.Predict(x), true
	case Reject:
		return math.NaN(), true
	}
	if math.IsInf(x, 0) {
		return math.NaN(), true
	}
	if x < lo {
		return lagrange(s.left, x), true
	}
	return lagrange(s.right, x), true
}

// lagrange evaluates the cubic through four points at x.
func lagrange(pts [4][2]float64, x float64) float64 {
	var sum float64
	for i := range pts {
		term := pts[i][1]
		for j := range pts {
			if i != j {
				term *= (x - pts[j][0]) / (pts[i][0] - pts[j][0])
			}
		}
		sum += term
	}
	return sum
}
