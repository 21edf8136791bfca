package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/salestory/salestory/internal/config"
)

// SQLExecutor executes read-only queries against a database/sql handle,
// capping results at maxRows and normalizing driver values.
type SQLExecutor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

func NewSQLExecutor(db *sql.DB, maxRows int, timeout time.Duration) *SQLExecutor {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &SQLExecutor{db: db, maxRows: maxRows, timeout: timeout}
}

// OpenPostgres opens a pooled connection for the "pgx" storage driver.
// DuckDB handles are opened by the duckdb subpackage, which also stages the
// dataset.
func OpenPostgres(cfg config.StorageConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func (e *SQLExecutor) Query(ctx context.Context, sqlText string) (ResultSet, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return ResultSet{}, fmt.Errorf("sql is required")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return ResultSet{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnCount, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("query columns: %w", err)
	}
	width := len(columnCount)

	result := ResultSet{Rows: make([][]any, 0)}
	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, width)
		scanTargets := make([]any, width)
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// HealthCheck pings the underlying handle; used by the readiness endpoint.
func (e *SQLExecutor) HealthCheck(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
