package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// OpenBatchConn opens a clickhouse-go connection tuned for bulk inserts.
func OpenBatchConn(ctx context.Context, addr, database, user, password string) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time":    300,
			"max_insert_block_size": 1048576,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}

// FluxRow is one row of the flux table, in column order.
type FluxRow struct {
	Time       time.Time
	Satellite  uint8
	Origin     string
	ShortFlux  float64
	LongFlux   float64
	ShortQ     uint32
	LongQ      uint32
	ShortDet   uint8
	LongDet    uint8
	SourceFile string
}

func (r FluxRow) values() []any {
	return []any{
		r.Time, r.Satellite, r.Origin, r.ShortFlux, r.LongFlux,
		r.ShortQ, r.LongQ, r.ShortDet, r.LongDet, r.SourceFile,
	}
}

// FluxRows flattens a series into table rows. Absent optional columns are
// stored as zero.
func FluxRows(s *xrs.Series, sourceFile string) []FluxRow {
	rows := make([]FluxRow, s.Len())
	for i := range rows {
		sm := s.At(i)
		rows[i] = FluxRow{
			Time:       sm.Time.UTC(),
			Satellite:  uint8(s.Satellite),
			Origin:     s.Origin,
			ShortFlux:  sm.ShortFlux,
			LongFlux:   sm.LongFlux,
			ShortQ:     uint32(sm.ShortQuality),
			LongQ:      uint32(sm.LongQuality),
			ShortDet:   uint8(sm.ShortDetector),
			LongDet:    uint8(sm.LongDetector),
			SourceFile: sourceFile,
		}
	}
	return rows
}

// FluxWriter appends flux series to the flux table with clickhouse-go
// batches.
type FluxWriter struct {
	conn      driver.Conn
	table     string
	batchSize int
}

// NewFluxWriter returns a writer for database.table. batchSize <= 0
// selects DefaultBatchSize.
func NewFluxWriter(conn driver.Conn, database, table string, batchSize int) *FluxWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &FluxWriter{conn: conn, table: fqn(database, table), batchSize: batchSize}
}

// Write inserts the series and returns the number of rows sent.
func (w *FluxWriter) Write(ctx context.Context, s *xrs.Series, sourceFile string) (int, error) {
	rows := FluxRows(s, sourceFile)
	sent := 0
	for start := 0; start < len(rows); start += w.batchSize {
		end := min(start+w.batchSize, len(rows))

		batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.table))
		if err != nil {
			return sent, fmt.Errorf("prepare batch: %w", err)
		}
		for _, r := range rows[start:end] {
			if err := batch.Append(r.values()...); err != nil {
				batch.Abort()
				return sent, fmt.Errorf("append row %s: %w", r.Time.Format(time.RFC3339), err)
			}
		}
		if err := batch.Send(); err != nil {
			return sent, fmt.Errorf("send batch: %w", err)
		}
		sent += end - start
	}
	return sent, nil
}
