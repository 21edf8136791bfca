package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/salestory/salestory/internal/storage"
)

// Open opens a DuckDB database at path. An empty path opens an in-memory
// database, which is the common case when the dataset is staged from object
// storage.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return db, nil
}

// StageDataset pulls the parquet dataset from the object store into a local
// temp file and exposes it as a read-only view named tableName. The temp file
// must outlive the database handle, so it is not removed here; callers get
// the staged path back and clean it up on shutdown.
func StageDataset(ctx context.Context, db *sql.DB, store storage.ObjectStore, datasetKey, tableName string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("database handle is required")
	}
	if store == nil {
		return "", fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(datasetKey) == "" {
		return "", fmt.Errorf("dataset key is required")
	}
	if strings.TrimSpace(tableName) == "" {
		return "", fmt.Errorf("table name is required")
	}

	reader, err := store.Get(ctx, datasetKey)
	if err != nil {
		return "", fmt.Errorf("get dataset %q: %w", datasetKey, err)
	}

	workDir, err := os.MkdirTemp("", "salestory-dataset-")
	if err != nil {
		_ = reader.Close()
		return "", fmt.Errorf("create dataset temp dir: %w", err)
	}

	localPath := filepath.Join(workDir, sanitizeFileComponent(tableName)+".parquet")
	if err := writeFile(localPath, reader); err != nil {
		_ = reader.Close()
		_ = os.RemoveAll(workDir)
		return "", fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	if err := reader.Close(); err != nil {
		_ = os.RemoveAll(workDir)
		return "", fmt.Errorf("close dataset %q: %w", datasetKey, err)
	}

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteString(localPath))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		_ = os.RemoveAll(workDir)
		return "", fmt.Errorf("create view for table %q: %w", tableName, err)
	}
	return workDir, nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}
