package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"go.uber.org/zap"

	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

const chTimeLayout = "2006-01-02 15:04:05"

// Reader loads flux series from the flux table.
type Reader struct {
	conn   Doer
	table  string // database.table
	logger *zap.Logger
}

// NewReader returns a reader for database.table.
func NewReader(conn Doer, database, table string, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{conn: conn, table: fqn(database, table), logger: logger}
}

// fluxColumns receives one result block.
type fluxColumns struct {
	time     proto.ColDateTime
	origin   proto.ColStr
	short    proto.ColFloat64
	long     proto.ColFloat64
	shortQ   proto.ColUInt32
	longQ    proto.ColUInt32
	shortDet proto.ColUInt8
	longDet  proto.ColUInt8
}

func (c *fluxColumns) results() proto.Results {
	return proto.Results{
		{Name: "time", Data: &c.time},
		{Name: "origin", Data: &c.origin},
		{Name: "xrsa_flux", Data: &c.short},
		{Name: "xrsb_flux", Data: &c.long},
		{Name: "xrsa_quality", Data: &c.shortQ},
		{Name: "xrsb_quality", Data: &c.longQ},
		{Name: "xrsa_primary_chan", Data: &c.shortDet},
		{Name: "xrsb_primary_chan", Data: &c.longDet},
	}
}

// LoadSeries reads samples of one satellite in [from, to), ordered by
// time. Detector selection columns that are zero for every sample are
// treated as absent. An empty range yields an empty series.
func (r *Reader) LoadSeries(ctx context.Context, satellite int, from, to time.Time) (*xrs.Series, error) {
	if err := xrs.CheckSatellite(satellite); err != nil {
		return nil, err
	}

	s := &xrs.Series{
		Observatory: fmt.Sprintf("GOES-%d", satellite),
		Satellite:   satellite,
		Short:       &xrs.Channel{Unit: xrs.WattsPerSquareMetre, Flux: []float64{}, Quality: []int32{}, PrimaryDetector: []int32{}},
		Long:        &xrs.Channel{Unit: xrs.WattsPerSquareMetre, Flux: []float64{}, Quality: []int32{}, PrimaryDetector: []int32{}},
	}
	hasDetector := false

	var cols fluxColumns
	query := fmt.Sprintf(
		"SELECT time, origin, xrsa_flux, xrsb_flux, xrsa_quality, xrsb_quality, xrsa_primary_chan, xrsb_primary_chan "+
			"FROM %s FINAL WHERE satellite = %d AND time >= toDateTime('%s', 'UTC') AND time < toDateTime('%s', 'UTC') "+
			"ORDER BY time",
		r.table, satellite, from.UTC().Format(chTimeLayout), to.UTC().Format(chTimeLayout))

	err := r.conn.Do(ctx, ch.Query{
		Body:   query,
		Result: cols.results(),
		OnResult: func(ctx context.Context, b proto.Block) error {
			for i := 0; i < cols.time.Rows(); i++ {
				if s.Origin == "" {
					s.Origin = cols.origin.Row(i)
				}
				s.Times = append(s.Times, cols.time.Row(i).UTC())
				s.Short.Flux = append(s.Short.Flux, cols.short.Row(i))
				s.Long.Flux = append(s.Long.Flux, cols.long.Row(i))
				s.Short.Quality = append(s.Short.Quality, int32(cols.shortQ.Row(i)))
				s.Long.Quality = append(s.Long.Quality, int32(cols.longQ.Row(i)))
				sd, ld := cols.shortDet.Row(i), cols.longDet.Row(i)
				s.Short.PrimaryDetector = append(s.Short.PrimaryDetector, int32(sd))
				s.Long.PrimaryDetector = append(s.Long.PrimaryDetector, int32(ld))
				if sd != 0 || ld != 0 {
					hasDetector = true
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select %s GOES-%d: %w", r.table, satellite, err)
	}

	if !hasDetector {
		s.Short.PrimaryDetector = nil
		s.Long.PrimaryDetector = nil
	}
	r.logger.Debug("flux series loaded",
		zap.Int("satellite", satellite),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("samples", s.Len()),
		zap.Bool("detectors", hasDetector))
	return s, nil
}

// Satellites lists satellites with flux rows in [from, to).
func (r *Reader) Satellites(ctx context.Context, from, to time.Time) ([]int, error) {
	var sat proto.ColUInt8
	var out []int
	err := r.conn.Do(ctx, ch.Query{
		Body: fmt.Sprintf(
			"SELECT DISTINCT satellite FROM %s WHERE time >= toDateTime('%s', 'UTC') AND time < toDateTime('%s', 'UTC') ORDER BY satellite",
			r.table, from.UTC().Format(chTimeLayout), to.UTC().Format(chTimeLayout)),
		Result: proto.Results{{Name: "satellite", Data: &sat}},
		OnResult: func(ctx context.Context, b proto.Block) error {
			for i := 0; i < sat.Rows(); i++ {
				out = append(out, int(sat.Row(i)))
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list satellites: %w", err)
	}
	return out, nil
}
