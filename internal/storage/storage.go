package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ResultSet holds the rows of an executed read-only query. Row tuples have
// fixed arity; Truncated reports that the configured row cap cut the result.
type ResultSet struct {
	Rows      [][]any
	Truncated bool
}

// Executor runs a validated SQL string against the analytics table and
// returns row tuples. Column metadata is deliberately not part of the
// contract; the caller derives names from the SQL text and reconciles them
// against actual row width.
type Executor interface {
	Query(ctx context.Context, sqlText string) (ResultSet, error)
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore is where the dataset parquet file lives before it is staged
// into the local query engine.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
