package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLExecutor is the query surface shared by the pool and SQLRunner.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var ErrSQLMarker = errors.New("sql marker missing or invalid")

// SQLRunner logs every statement by its "--sql <uuid>" marker line and strips
// the marker before handing the query to the pool.
type SQLRunner struct {
	db     SQLExecutor
	logger Logger
}

func NewSQLRunner(db SQLExecutor, logger Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.db.Exec(ctx, trimmed, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("phase", "sql.exec").Str("marker", marker).Msg("sql exec failed")
		return tag, err
	}
	r.logger.Debug().Str("phase", "sql.exec").Str("marker", marker).
		Int64("rows", tag.RowsAffected()).Dur("elapsed", time.Since(start)).Msg("sql exec ok")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return loggingRow{row: r.db.QueryRow(ctx, trimmed, args...), logger: r.logger, marker: marker, start: time.Now()}
}

type loggingRow struct {
	row    pgx.Row
	logger Logger
	marker string
	start  time.Time
}

// Scan treats pgx.ErrNoRows as an expected outcome and does not log it as an
// error.
func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	switch {
	case err == nil || errors.Is(err, pgx.ErrNoRows):
		l.logger.Debug().Str("phase", "sql.query_row").Str("marker", l.marker).
			Bool("found", err == nil).Dur("elapsed", time.Since(l.start)).Msg("sql query ok")
	default:
		l.logger.Error().Err(err).Str("phase", "sql.query_row").Str("marker", l.marker).Msg("sql scan failed")
	}
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	lines := strings.Split(trimmed, "\n")
	markerLine := strings.TrimSpace(lines[0])
	if !markerRegexp.MatchString(markerLine) {
		return "", "", ErrSQLMarker
	}
	return strings.TrimPrefix(markerLine, "--sql "), strings.Join(lines[1:], "\n"), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
