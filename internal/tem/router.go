package tem

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// parallelThreshold is the series length above which detector segments
// are computed concurrently.
const parallelThreshold = 1000

// segment is the subsequence of a series that used one detector pair.
type segment struct {
	pair   response.DetectorPair
	idx    []int // positions in the parent series
	points []xrs.Diagnostic
	err    error
}

// partition splits sample positions by detector pair. Positions whose
// selection codes match no pair are returned separately.
func partition(s *xrs.Series) (segs [4]*segment, unmatched int) {
	for k, pair := range response.DetectorPairs {
		segs[k] = &segment{pair: pair}
	}
	shortDet := s.Short.PrimaryDetector
	longDet := s.Long.PrimaryDetector

	for i := 0; i < s.Len(); i++ {
		matched := false
		for _, seg := range segs {
			a, b := seg.pair.Detectors()
			if shortDet[i] == a && longDet[i] == b {
				seg.idx = append(seg.idx, i)
				matched = true
				break
			}
		}
		if !matched {
			unmatched++
		}
	}
	return segs, unmatched
}

// route computes every non-empty detector segment against its own table
// row and merges the results back into time order. A segment whose row is
// missing from the table is skipped; the call fails only when no segment
// produced output.
func route(table *response.Table, s *xrs.Series, opts Options, out *xrs.DiagnosticSeries) error {
	segs, unmatched := partition(s)
	if unmatched > 0 {
		out.Warnf("%d samples with unrecognised detector selection were not processed", unmatched)
	}

	run := func(seg *segment) {
		row, err := table.Resolve(s.Satellite, seg.pair)
		if err != nil {
			seg.err = err
			return
		}
		seg.points, seg.err = computeSegment(row, s.Subset(seg.idx), opts, int8(seg.pair))
	}

	if s.Len() < parallelThreshold {
		for _, seg := range segs {
			if len(seg.idx) > 0 {
				run(seg)
			}
		}
	} else {
		var wg sync.WaitGroup
		for _, seg := range segs {
			if len(seg.idx) == 0 {
				continue
			}
			wg.Add(1)
			go func(seg *segment) {
				defer wg.Done()
				run(seg)
			}(seg)
		}
		wg.Wait()
	}

	var (
		merged   []positioned
		skipped  error
		nonEmpty int
	)
	for _, seg := range segs {
		if len(seg.idx) == 0 {
			continue
		}
		nonEmpty++
		if seg.err != nil {
			if errors.Is(seg.err, xrs.ErrUnsupportedDetectorTable) {
				out.Warnf("detector pair %s skipped: %v", seg.pair, seg.err)
				skipped = seg.err
				continue
			}
			return fmt.Errorf("detector pair %s: %w", seg.pair, seg.err)
		}
		for j, p := range seg.points {
			merged = append(merged, positioned{pos: seg.idx[j], d: p})
		}
	}

	switch {
	case nonEmpty == 0:
		return fmt.Errorf("%w: GOES-%d has no samples for any detector pair", xrs.ErrNoDetectorDataFound, s.Satellite)
	case len(merged) == 0:
		return fmt.Errorf("%w: every detector segment was skipped: %w", xrs.ErrNoDetectorDataFound, skipped)
	}

	sortPositioned(merged)
	out.Points = make([]xrs.Diagnostic, len(merged))
	for i, m := range merged {
		out.Points[i] = m.d
	}
	return nil
}

// positioned tags a diagnostic with its position in the input series.
type positioned struct {
	pos int
	d   xrs.Diagnostic
}

// sortPositioned orders by timestamp, then input position.
func sortPositioned(p []positioned) {
	sort.Slice(p, func(i, j int) bool {
		if !p[i].d.Time.Equal(p[j].d.Time) {
			return p[i].d.Time.Before(p[j].d.Time)
		}
		return p[i].pos < p[j].pos
	})
}
