package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/google/uuid"

	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

// DefaultBatchSize is the number of rows per native INSERT.
const DefaultBatchSize = 50_000

// DiagnosticBatch holds column data for native insert.
type DiagnosticBatch struct {
	RunID        *proto.ColUUID
	Time         *proto.ColDateTime
	Satellite    *proto.ColUInt8
	Abundance    *proto.ColStr
	TableVersion *proto.ColStr
	Temperature  *proto.ColFloat64
	EmissionMeas *proto.ColFloat64
	Detector     *proto.ColInt8
	Flags        *proto.ColUInt8
	ComputedAt   *proto.ColDateTime
}

func NewDiagnosticBatch() *DiagnosticBatch {
	return &DiagnosticBatch{
		RunID:        new(proto.ColUUID),
		Time:         new(proto.ColDateTime),
		Satellite:    new(proto.ColUInt8),
		Abundance:    new(proto.ColStr),
		TableVersion: new(proto.ColStr),
		Temperature:  new(proto.ColFloat64),
		EmissionMeas: new(proto.ColFloat64),
		Detector:     new(proto.ColInt8),
		Flags:        new(proto.ColUInt8),
		ComputedAt:   new(proto.ColDateTime),
	}
}

func (b *DiagnosticBatch) Reset() {
	b.RunID.Reset()
	b.Time.Reset()
	b.Satellite.Reset()
	b.Abundance.Reset()
	b.TableVersion.Reset()
	b.Temperature.Reset()
	b.EmissionMeas.Reset()
	b.Detector.Reset()
	b.Flags.Reset()
	b.ComputedAt.Reset()
}

func (b *DiagnosticBatch) Len() int {
	return b.Time.Rows()
}

func (b *DiagnosticBatch) Input() proto.Input {
	return proto.Input{
		{Name: "run_id", Data: b.RunID},
		{Name: "time", Data: b.Time},
		{Name: "satellite", Data: b.Satellite},
		{Name: "abundance", Data: b.Abundance},
		{Name: "table_version", Data: b.TableVersion},
		{Name: "temperature_mk", Data: b.Temperature},
		{Name: "emission_measure", Data: b.EmissionMeas},
		{Name: "detector", Data: b.Detector},
		{Name: "flags", Data: b.Flags},
		{Name: "computed_at", Data: b.ComputedAt},
	}
}

func (b *DiagnosticBatch) AddRow(runID uuid.UUID, d *xrs.DiagnosticSeries, p xrs.Diagnostic, computedAt time.Time) {
	b.RunID.Append(runID)
	b.Time.Append(p.Time)
	b.Satellite.Append(uint8(d.Satellite))
	b.Abundance.Append(d.Abundance)
	b.TableVersion.Append(d.TableVersion)
	b.Temperature.Append(p.TemperatureMK)
	b.EmissionMeas.Append(p.EmissionMeasure)
	b.Detector.Append(p.Detector)
	b.Flags.Append(uint8(p.Flags))
	b.ComputedAt.Append(computedAt)
}

// DiagnosticsWriter inserts diagnostic series into the diagnostics table.
type DiagnosticsWriter struct {
	conn      Doer
	table     string
	batchSize int
	now       func() time.Time
}

// NewDiagnosticsWriter returns a writer for database.table. batchSize <= 0
// selects DefaultBatchSize.
func NewDiagnosticsWriter(conn Doer, database, table string, batchSize int) *DiagnosticsWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DiagnosticsWriter{conn: conn, table: fqn(database, table), batchSize: batchSize, now: time.Now}
}

// Write inserts every point of d tagged with runID and returns the number
// of rows sent.
func (w *DiagnosticsWriter) Write(ctx context.Context, runID uuid.UUID, d *xrs.DiagnosticSeries) (int, error) {
	batch := NewDiagnosticBatch()
	computedAt := w.now().UTC()
	inserted := 0

	for _, p := range d.Points {
		batch.AddRow(runID, d, p, computedAt)
		if batch.Len() >= w.batchSize {
			if err := w.flush(ctx, batch); err != nil {
				return inserted, err
			}
			inserted += batch.Len()
			batch.Reset()
		}
	}
	if batch.Len() > 0 {
		if err := w.flush(ctx, batch); err != nil {
			return inserted, err
		}
		inserted += batch.Len()
	}
	return inserted, nil
}

func (w *DiagnosticsWriter) flush(ctx context.Context, batch *DiagnosticBatch) error {
	query := fmt.Sprintf("INSERT INTO %s (run_id, time, satellite, abundance, table_version, temperature_mk, emission_measure, detector, flags, computed_at) VALUES", w.table)
	if err := w.conn.Do(ctx, ch.Query{Body: query, Input: batch.Input()}); err != nil {
		return fmt.Errorf("insert into %s: %w", w.table, err)
	}
	return nil
}
