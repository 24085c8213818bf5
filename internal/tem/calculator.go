package tem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/goes-xrs-tem/internal/metrics"
	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// Compute converts a flux series into temperature and emission measure
// using an already loaded response table. It is a pure function of its
// inputs; the flux columns of s are never modified.
//
// GOES-R series with detector selection columns are routed by detector
// pair. Without them a single pass is made with the A1+B1 row and a
// warning is attached to the result.
func Compute(table *response.Table, s *xrs.Series, opts Options) (*xrs.DiagnosticSeries, error) {
	if table == nil {
		return nil, errors.New("response table is nil")
	}
	if err := xrs.Validate(s); err != nil {
		return nil, err
	}
	if s.Satellite == 0 {
		// work on a copy carrying the number parsed from the observatory
		sat, _ := s.SatelliteNumber()
		resolved := *s
		resolved.Satellite = sat
		s = &resolved
	}
	if opts.Abundance > response.Photospheric {
		return nil, fmt.Errorf("%w: %d", xrs.ErrInvalidAbundance, opts.Abundance)
	}

	out := &xrs.DiagnosticSeries{
		Satellite:    s.Satellite,
		Abundance:    opts.Abundance.String(),
		TableVersion: table.Version,
	}

	if xrs.IsGOESR(s.Satellite) {
		if s.HasDetectorSelection() {
			if err := route(table, s, opts, out); err != nil {
				return nil, err
			}
			return out, nil
		}
		out.Warnf("no primary/secondary detector information for GOES-%d, assuming primary for all", s.Satellite)
	}

	row, err := table.Resolve(s.Satellite, response.A1B1)
	if err != nil {
		return nil, err
	}
	points, err := computeSegment(row, s, opts, xrs.NoDetector)
	if err != nil {
		return nil, err
	}
	out.Points = points
	return out, nil
}

// Calculator runs Compute against the table held by a response Manager.
type Calculator struct {
	manager *response.Manager
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCalculator builds a calculator. logger and m may be nil.
func NewCalculator(manager *response.Manager, opts Options, logger *zap.Logger, m *metrics.Metrics) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{manager: manager, opts: opts, logger: logger, metrics: m}
}

// Options returns the calculator's response model selection.
func (c *Calculator) Options() Options {
	return c.opts
}

// Calculate acquires the current response table, computes the diagnostics
// for s and releases the table again. The table is never swapped in the
// middle of a calculation.
func (c *Calculator) Calculate(ctx context.Context, s *xrs.Series) (*xrs.DiagnosticSeries, error) {
	start := time.Now()

	h, err := c.manager.Acquire(ctx)
	if err != nil {
		c.metrics.ObserveError(time.Since(start))
		return nil, fmt.Errorf("acquire response table: %w", err)
	}
	defer h.Release()

	out, err := Compute(h.Table(), s, c.opts)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveError(elapsed)
		c.logger.Error("temperature calculation failed",
			zap.String("observatory", s.Observatory),
			zap.Int("satellite", s.Satellite),
			zap.Error(err))
		return nil, err
	}

	for _, w := range out.Warnings {
		c.logger.Warn(w, zap.Int("satellite", out.Satellite))
	}
	c.metrics.ObserveSeries(out, elapsed)
	c.logger.Debug("temperature calculation done",
		zap.Int("satellite", out.Satellite),
		zap.Int("samples", out.Len()),
		zap.String("abundance", out.Abundance),
		zap.String("table", out.TableVersion),
		zap.Duration("elapsed", elapsed))
	return out, nil
}
