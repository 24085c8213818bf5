// Package store moves XRS fluxes and derived diagnostics in and out of
// ClickHouse. Reads and diagnostic inserts use the ch-go native protocol;
// bulk flux ingest uses clickhouse-go batches.
package store

import (
	"context"
	"fmt"

	"github.com/ClickHouse/ch-go"
)

// Doer runs a native-protocol query. *ch.Client implements it.
type Doer interface {
	Do(ctx context.Context, q ch.Query) error
}

// Default table names inside the solar database.
const (
	FluxTable        = "xrs_flux"
	DiagnosticsTable = "xrs_tem"
)

const fluxDDL = `CREATE TABLE IF NOT EXISTS %s (
    time              DateTime,
    satellite         UInt8,
    origin            String,
    xrsa_flux         Float64,
    xrsb_flux         Float64,
    xrsa_quality      UInt32,
    xrsb_quality      UInt32,
    xrsa_primary_chan UInt8,
    xrsb_primary_chan UInt8,
    source_file       String
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(time)
ORDER BY (satellite, time)`

const diagnosticsDDL = `CREATE TABLE IF NOT EXISTS %s (
    run_id           UUID,
    time             DateTime,
    satellite        UInt8,
    abundance        String,
    table_version    String,
    temperature_mk   Float64,
    emission_measure Float64,
    detector         Int8,
    flags            UInt8,
    computed_at      DateTime
) ENGINE = ReplacingMergeTree(computed_at)
PARTITION BY toYYYYMM(time)
ORDER BY (satellite, abundance, time)`

// EnsureSchema creates the database and both tables when missing.
func EnsureSchema(ctx context.Context, conn Doer, database, fluxTable, diagTable string) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(fluxDDL, fqn(database, fluxTable)),
		fmt.Sprintf(diagnosticsDDL, fqn(database, diagTable)),
	}
	for _, body := range stmts {
		if err := conn.Do(ctx, ch.Query{Body: body}); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Dial opens a native-protocol connection.
func Dial(ctx context.Context, addr, database, user, password string) (*ch.Client, error) {
	return ch.Dial(ctx, ch.Options{
		Address:     addr,
		Database:    database,
		User:        user,
		Password:    password,
		Compression: ch.CompressionLZ4,
	})
}

func fqn(database, table string) string {
	return fmt.Sprintf("%s.%s", database, table)
}
