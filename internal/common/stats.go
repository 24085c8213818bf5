package common

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// Stats holds atomic counters for long-running backfills.
type Stats struct {
	TotalSamples      uint64 // flux samples converted
	TotalSeries       uint64 // series (days) completed
	TotalRowsWritten  uint64 // diagnostic rows written to sinks
	LastSeriesLatency uint64 // nanoseconds

	running  atomic.Bool
	stopCh   chan struct{}
	out      io.Writer
	silent   bool
	interval time.Duration

	lastSamples uint64
	lastTime    time.Time

	// moving average of samples per second
	rateWindow []float64
	rateIndex  int
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		stopCh:     make(chan struct{}),
		out:        os.Stdout,
		interval:   500 * time.Millisecond,
		rateWindow: make([]float64, 10), // 5 seconds at the default interval
	}
}

// AddSamples atomically increments the sample counter.
func (s *Stats) AddSamples(n uint64) {
	atomic.AddUint64(&s.TotalSamples, n)
}

// SeriesDone records a finished series and its latency.
func (s *Stats) SeriesDone(latency time.Duration) {
	atomic.AddUint64(&s.TotalSeries, 1)
	atomic.StoreUint64(&s.LastSeriesLatency, uint64(latency))
}

// AddRowsWritten atomically increments the written-row counter.
func (s *Stats) AddRowsWritten(n uint64) {
	atomic.AddUint64(&s.TotalRowsWritten, n)
}

func (s *Stats) Samples() uint64     { return atomic.LoadUint64(&s.TotalSamples) }
func (s *Stats) Series() uint64      { return atomic.LoadUint64(&s.TotalSeries) }
func (s *Stats) RowsWritten() uint64 { return atomic.LoadUint64(&s.TotalRowsWritten) }

// LastLatency returns the latency of the most recent series.
func (s *Stats) LastLatency() time.Duration {
	return time.Duration(atomic.LoadUint64(&s.LastSeriesLatency))
}

// SetSilent enables or disables silent mode
func (s *Stats) SetSilent(silent bool) {
	s.silent = silent
}

// SetOutput redirects progress lines.
func (s *Stats) SetOutput(w io.Writer) {
	s.out = w
}

// StartReporter prints a progress line every interval until StopReporter.
func (s *Stats) StartReporter() {
	if s.running.Swap(true) {
		return
	}
	s.lastTime = time.Now()
	s.lastSamples = 0
	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine
func (s *Stats) StopReporter() {
	if !s.running.Swap(false) {
		return
	}
	close(s.stopCh)
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus(time.Now())
		}
	}
}

func (s *Stats) printStatus(now time.Time) {
	if s.silent {
		return
	}
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	current := s.Samples()
	rate := float64(current-s.lastSamples) / elapsed

	s.rateWindow[s.rateIndex] = rate
	s.rateIndex = (s.rateIndex + 1) % len(s.rateWindow)
	var sum float64
	var count int
	for _, r := range s.rateWindow {
		if r > 0 {
			sum += r
			count++
		}
	}
	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}

	fmt.Fprintf(s.out, "[Progress] Samples: %.1f k/s (avg: %.1f k/s) | Series: %d | Last: %.2f ms | Written: %d rows | Total: %d samples\n",
		rate/1000,
		avg/1000,
		s.Series(),
		float64(s.LastLatency())/float64(time.Millisecond),
		s.RowsWritten(),
		current,
	)

	s.lastSamples = current
	s.lastTime = now
}

// Reset resets all counters.
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.TotalSamples, 0)
	atomic.StoreUint64(&s.TotalSeries, 0)
	atomic.StoreUint64(&s.TotalRowsWritten, 0)
	atomic.StoreUint64(&s.LastSeriesLatency, 0)
	s.lastSamples = 0
	s.lastTime = time.Now()
	for i := range s.rateWindow {
		s.rateWindow[i] = 0
	}
	s.rateIndex = 0
}
