package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	pkgch "HistPull/pkg/clickhouse"
	applogger "HistPull/pkg/logger"
)

const (
	marketRowsTable = "market_rows"
	insertChunkSize = 2000
	insertColumns   = "trade_date, instrument, leg, date, time, symbol, open, high, low, close, oi, volume"
)

// MarketRowsSchema returns the DDL for the market_rows table in database.
func MarketRowsSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            trade_date Date,
            instrument LowCardinality(String),
            leg LowCardinality(String),
            date String,
            time String,
            symbol String,
            open String,
            high String,
            low String,
            close String,
            oi String,
            volume String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(trade_date)
        ORDER BY (instrument, leg, trade_date, symbol, time)`, database, marketRowsTable),
	}
}

// execer is the part of *sql.DB the sink uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ClickHouseSink copies classified rows into ClickHouse.
type ClickHouseSink struct {
	db    execer
	table string
	l     *applogger.Logger
}

// NewClickHouseSink creates a sink writing into <database>.market_rows.
func NewClickHouseSink(ch *pkgch.Client, database string, l *applogger.Logger) repository.RowSink {
	return &ClickHouseSink{db: ch.DB(), table: database + "." + marketRowsTable, l: l}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

// Write inserts every row of every leg in multi-row VALUES chunks.
func (s *ClickHouseSink) Write(ctx context.Context, task models.Task, groups *models.ClassifiedGroups) error {
	for _, stmt := range buildInserts(s.table, task, groups, insertChunkSize) {
		if _, err := s.db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse insert error",
					applogger.String("table", s.table),
					applogger.String("task", task.String()),
					applogger.Error(err),
				)
			}
			return &models.PersistError{Path: s.table, Err: fmt.Errorf("insert: %w", err)}
		}
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	return nil // Managed by pkg
}

type insertStmt struct {
	query string
	args  []any
}

func buildInserts(table string, task models.Task, groups *models.ClassifiedGroups, chunk int) []insertStmt {
	type row struct {
		leg models.Leg
		rec models.Record
	}
	rows := make([]row, 0, groups.Total())
	for _, leg := range models.Legs {
		for _, rec := range groups.Group(leg).Records {
			rows = append(rows, row{leg: leg, rec: rec})
		}
	}

	var stmts []insertStmt
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*12)
		for _, r := range rows[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				task.Date,
				task.Instrument,
				string(r.leg),
				r.rec.Date,
				r.rec.Time,
				r.rec.Symbol,
				r.rec.Open,
				r.rec.High,
				r.rec.Low,
				r.rec.Close,
				r.rec.OI,
				r.rec.Volume,
			)
		}
		stmts = append(stmts, insertStmt{
			query: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, insertColumns, strings.Join(values, ",")),
			args:  args,
		})
	}
	return stmts
}
