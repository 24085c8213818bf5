// Package swpc decodes the NOAA SWPC GOES X-ray JSON feeds
// (services.swpc.noaa.gov/json/goes/{primary,secondary}/xrays-*.json)
// into XRS flux series.
//
// Each feed record carries one channel at one time:
//
//	{"time_tag": "2024-05-10T12:00:00Z", "satellite": 16, "flux": 1.2e-06,
//	 "observed_flux": 1.3e-06, "electron_correction": 0,
//	 "electron_contaminaton": false, "energy": "0.1-0.8nm"}
//
// Records are paired by satellite and time into short/long samples.
package swpc

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// Energy bands as they appear in the feed.
const (
	ShortBand = "0.05-0.4nm"
	LongBand  = "0.1-0.8nm"
)

// Record is one SWPC X-ray feed entry.
type Record struct {
	TimeTag               string   `json:"time_tag"`
	Satellite             int      `json:"satellite"`
	Flux                  *float64 `json:"flux"`
	ObservedFlux          *float64 `json:"observed_flux"`
	ElectronCorrection    *float64 `json:"electron_correction"`
	ElectronContamination bool     `json:"electron_contaminaton"` // sic
	Energy                string   `json:"energy"`
}

// Feed is the decoded content of one feed file.
type Feed struct {
	Series   []*xrs.Series // one per satellite, ordered by satellite
	Unpaired int           // timestamps with only one channel
	Invalid  int           // records with bad time, band or satellite
}

// Samples returns the total number of paired samples.
func (f *Feed) Samples() int {
	n := 0
	for _, s := range f.Series {
		n += s.Len()
	}
	return n
}

type pair struct {
	short, long       float64
	shortQ, longQ     int32
	hasShort, hasLong bool
}

// Parse decodes a feed. Electron-contaminated records get quality code 1,
// null fluxes become NaN.
func Parse(r io.Reader) (*Feed, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode SWPC X-ray feed: %w", err)
	}

	feed := &Feed{}
	bySat := map[int]map[time.Time]*pair{}

	for _, rec := range records {
		t, err := time.Parse(time.RFC3339, rec.TimeTag)
		band := strings.TrimSpace(rec.Energy)
		if err != nil || xrs.CheckSatellite(rec.Satellite) != nil || (band != ShortBand && band != LongBand) {
			feed.Invalid++
			continue
		}
		flux := math.NaN()
		if rec.Flux != nil {
			flux = *rec.Flux
		}
		var q int32
		if rec.ElectronContamination {
			q = 1
		}

		pairs := bySat[rec.Satellite]
		if pairs == nil {
			pairs = map[time.Time]*pair{}
			bySat[rec.Satellite] = pairs
		}
		p := pairs[t.UTC()]
		if p == nil {
			p = &pair{}
			pairs[t.UTC()] = p
		}

		if band == ShortBand {
			p.short, p.shortQ, p.hasShort = flux, q, true
		} else {
			p.long, p.longQ, p.hasLong = flux, q, true
		}
	}

	sats := make([]int, 0, len(bySat))
	for sat := range bySat {
		sats = append(sats, sat)
	}
	sort.Ints(sats)

	for _, sat := range sats {
		pairs := bySat[sat]
		times := make([]time.Time, 0, len(pairs))
		for t, p := range pairs {
			if p.hasShort && p.hasLong {
				times = append(times, t)
			} else {
				feed.Unpaired++
			}
		}
		if len(times) == 0 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		samples := make([]xrs.Sample, len(times))
		for i, t := range times {
			p := pairs[t]
			samples[i] = xrs.Sample{
				Time:         t,
				ShortFlux:    p.short,
				LongFlux:     p.long,
				ShortQuality: p.shortQ,
				LongQuality:  p.longQ,
			}
		}
		s := xrs.NewSeries(fmt.Sprintf("GOES-%d", sat), xrs.SWPCOrigin, samples, true, false)
		s.Satellite = sat
		feed.Series = append(feed.Series, s)
	}
	return feed, nil
}

// ParseFile decodes a feed file; ".gz" files are decompressed with
// parallel gzip.
func ParseFile(path string) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return Parse(r)
}
