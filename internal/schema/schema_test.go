package schema

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/salestory/salestory/internal/storage"
)

func TestBuildDefaults(t *testing.T) {
	ctx := Build("")
	if ctx.TableName != "sales_table" {
		t.Fatalf("TableName = %q", ctx.TableName)
	}
	if len(ctx.Columns) != 11 {
		t.Fatalf("columns = %d, want 11", len(ctx.Columns))
	}
	names := ctx.ColumnNames()
	if names[0] != "order_id" || names[len(names)-1] != "order_status" {
		t.Fatalf("ColumnNames() = %v", names)
	}
}

func TestPromptTextIsDeterministic(t *testing.T) {
	ctx := Build("sales_table")
	first := ctx.PromptText()
	second := ctx.PromptText()
	if first != second {
		t.Fatal("PromptText() not deterministic")
	}
	for _, want := range []string{
		"Table: sales_table",
		"product_category (VARCHAR)",
		"10000 total orders",
		"SAMPLE QUERIES:",
	} {
		if !strings.Contains(first, want) {
			t.Fatalf("PromptText() missing %q", want)
		}
	}
}

func TestRefreshAppliesLiveFacts(t *testing.T) {
	exec := &fakeExecutor{results: map[string][][]any{
		"SELECT COUNT(*) FROM sales_table":                          {{int64(20000)}},
		"SELECT COUNT(DISTINCT customer_id) FROM sales_table":       {{int64(750)}},
		"SELECT COUNT(DISTINCT product_name) FROM sales_table":      {{int64(128)}},
		"SELECT CAST(MIN(order_date) AS VARCHAR) FROM sales_table":  {{"2022-06-01 00:00:00"}},
		"SELECT CAST(MAX(order_date) AS VARCHAR) FROM sales_table":  {{"2024-05-31 00:00:00"}},
	}}

	ctx := Build("sales_table")
	ctx.Refresh(context.Background(), exec, discardLogger())
	if ctx.Facts.RowCount != 20000 {
		t.Fatalf("RowCount = %d", ctx.Facts.RowCount)
	}
	if ctx.Facts.UniqueCustomers != 750 {
		t.Fatalf("UniqueCustomers = %d", ctx.Facts.UniqueCustomers)
	}
	if ctx.Facts.FirstOrderDate != "2022-06-01 00:00:00" {
		t.Fatalf("FirstOrderDate = %q", ctx.Facts.FirstOrderDate)
	}
}

func TestRefreshKeepsDefaultsOnFailure(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("database offline")}
	ctx := Build("sales_table")
	ctx.Refresh(context.Background(), exec, discardLogger())
	if ctx.Facts.RowCount != 10000 {
		t.Fatalf("RowCount = %d, want curated default", ctx.Facts.RowCount)
	}
	if ctx.Facts.UniqueCustomers != 500 {
		t.Fatalf("UniqueCustomers = %d, want curated default", ctx.Facts.UniqueCustomers)
	}
}

func TestCategoryMapFallsBackToCuratedMapping(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("database offline")}
	ctx := Build("sales_table")
	categories := ctx.CategoryMap(context.Background(), exec)
	if len(categories) != 8 {
		t.Fatalf("categories = %d, want 8", len(categories))
	}
	subs, ok := categories["Electronics & Gadgets"]
	if !ok || len(subs) != 4 {
		t.Fatalf("Electronics & Gadgets = %v", subs)
	}
}

func TestCategoryMapReadsLiveRows(t *testing.T) {
	exec := &fakeExecutor{results: map[string][][]any{
		"SELECT DISTINCT product_category, product_subcategory FROM sales_table ORDER BY product_category, product_subcategory": {
			{"Electronics & Gadgets", "Smartphones"},
			{"Electronics & Gadgets", "Laptops"},
			{"Toys & Games", "Puzzles"},
		},
	}}
	ctx := Build("sales_table")
	categories := ctx.CategoryMap(context.Background(), exec)
	if len(categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(categories))
	}
	if got := categories["Electronics & Gadgets"]; len(got) != 2 || got[0] != "Laptops" {
		t.Fatalf("Electronics & Gadgets = %v", got)
	}
}

type fakeExecutor struct {
	results map[string][][]any
	err     error
}

func (f *fakeExecutor) Query(_ context.Context, sqlText string) (storage.ResultSet, error) {
	if f.err != nil {
		return storage.ResultSet{}, f.err
	}
	rows, ok := f.results[sqlText]
	if !ok {
		return storage.ResultSet{Rows: [][]any{}}, nil
	}
	return storage.ResultSet{Rows: rows}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
