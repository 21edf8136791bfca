package querygen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/salestory/salestory/internal/llm"
	"github.com/salestory/salestory/internal/schema"
	"github.com/salestory/salestory/internal/storage"
)

func TestGenerateHappyPath(t *testing.T) {
	client := &fakeLLM{response: "```sql\nSELECT product_category, SUM(product_price * quantity_ordered) AS total_revenue FROM sales_table GROUP BY product_category\n```"}
	exec := &fakeExecutor{result: storage.ResultSet{Rows: [][]any{
		{"Electronics & Gadgets", 125000.50},
		{"Clothing & Apparel", 84000.25},
	}}}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "What are the top categories by revenue?")

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.ErrorMessage)
	}
	if strings.HasPrefix(result.SQL, "```") {
		t.Fatalf("SQL retains fence: %q", result.SQL)
	}
	want := []string{"product_category", "total_revenue"}
	if len(result.ColumnNames) != 2 || result.ColumnNames[0] != want[0] || result.ColumnNames[1] != want[1] {
		t.Fatalf("ColumnNames = %v, want %v", result.ColumnNames, want)
	}
	if result.Note != "2 rows returned" {
		t.Fatalf("Note = %q", result.Note)
	}
	if result.ErrorMessage != "" {
		t.Fatalf("ErrorMessage = %q, want empty on success", result.ErrorMessage)
	}
}

func TestGenerateLLMFailure(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("rate limited")}
	exec := &fakeExecutor{}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "question")

	if result.Success {
		t.Fatal("Success = true for llm failure")
	}
	if !strings.HasPrefix(result.ErrorMessage, "SQL generation failed:") {
		t.Fatalf("ErrorMessage = %q", result.ErrorMessage)
	}
	if exec.calls != 0 {
		t.Fatalf("executor called %d times, want 0", exec.calls)
	}
}

func TestGenerateRejectsUnsafeSQL(t *testing.T) {
	client := &fakeLLM{response: "DROP TABLE sales_table"}
	exec := &fakeExecutor{}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "question")

	if result.Success {
		t.Fatal("Success = true for rejected query")
	}
	if result.ErrorMessage != "Generated query failed validation" {
		t.Fatalf("ErrorMessage = %q", result.ErrorMessage)
	}
	if result.SQL != "DROP TABLE sales_table" {
		t.Fatalf("SQL = %q, want rejected text preserved", result.SQL)
	}
	if exec.calls != 0 {
		t.Fatalf("executor called %d times, want 0", exec.calls)
	}
}

func TestGenerateExecutionFailure(t *testing.T) {
	client := &fakeLLM{response: "SELECT missing_column FROM sales_table"}
	exec := &fakeExecutor{err: fmt.Errorf(`column "missing_column" does not exist`)}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "question")

	if result.Success {
		t.Fatal("Success = true for execution failure")
	}
	if !strings.HasPrefix(result.ErrorMessage, "Query execution failed:") {
		t.Fatalf("ErrorMessage = %q", result.ErrorMessage)
	}
	if result.SQL == "" {
		t.Fatal("SQL empty, want failed query preserved")
	}
}

func TestGenerateReconcilesColumnMismatch(t *testing.T) {
	// Two names claimed in the SELECT clause, three values per row.
	client := &fakeLLM{response: "SELECT product_category, revenue FROM sales_table"}
	exec := &fakeExecutor{result: storage.ResultSet{Rows: [][]any{
		{"Electronics", 1500.0, int64(45)},
	}}}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "question")

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.ErrorMessage)
	}
	want := []string{"product_category", "revenue", "col_2"}
	if len(result.ColumnNames) != 3 {
		t.Fatalf("ColumnNames = %v, want %v", result.ColumnNames, want)
	}
	for i := range want {
		if result.ColumnNames[i] != want[i] {
			t.Fatalf("ColumnNames = %v, want %v", result.ColumnNames, want)
		}
	}
}

func TestGenerateEmptyResult(t *testing.T) {
	client := &fakeLLM{response: "SELECT product_category FROM sales_table WHERE 1=0"}
	exec := &fakeExecutor{result: storage.ResultSet{Rows: [][]any{}}}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "question")

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.ErrorMessage)
	}
	if len(result.ColumnNames) != 0 {
		t.Fatalf("ColumnNames = %v, want empty for empty result", result.ColumnNames)
	}
	if result.Note != "0 rows returned" {
		t.Fatalf("Note = %q", result.Note)
	}
}

func TestGenerateSurfacesTruncation(t *testing.T) {
	client := &fakeLLM{response: "SELECT order_id FROM sales_table"}
	exec := &fakeExecutor{result: storage.ResultSet{Rows: [][]any{{int64(1)}, {int64(2)}}, Truncated: true}}

	gen := newTestGenerator(client, exec)
	result := gen.Generate(context.Background(), "question")

	if !result.Truncated {
		t.Fatal("Truncated = false")
	}
	if !strings.Contains(result.Note, "truncated") {
		t.Fatalf("Note = %q, want truncation mention", result.Note)
	}
}

func TestExplainFallsBackOnError(t *testing.T) {
	gen := newTestGenerator(&fakeLLM{err: fmt.Errorf("offline")}, &fakeExecutor{})
	got := gen.Explain(context.Background(), "SELECT 1")
	if got != "Could not generate explanation for this query." {
		t.Fatalf("Explain() = %q", got)
	}
}

func TestSuggestQuestionsCapsAtFive(t *testing.T) {
	client := &fakeLLM{response: "q1\nq2\n\nq3\nq4\nq5\nq6\nq7"}
	gen := newTestGenerator(client, &fakeExecutor{})
	got := gen.SuggestQuestions(context.Background(), "top categories?")
	if len(got) != 5 {
		t.Fatalf("suggestions = %d, want 5", len(got))
	}
	if got[2] != "q3" {
		t.Fatalf("suggestions[2] = %q", got[2])
	}
}

func TestSuggestQuestionsEmptyOnError(t *testing.T) {
	gen := newTestGenerator(&fakeLLM{err: fmt.Errorf("offline")}, &fakeExecutor{})
	if got := gen.SuggestQuestions(context.Background(), "question"); len(got) != 0 {
		t.Fatalf("suggestions = %v, want empty", got)
	}
}

func newTestGenerator(client llm.Client, exec storage.Executor) *Generator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGenerator(client, exec, schema.Build("sales_table"), logger, 10000, 2000)
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(context.Context, []llm.Message, int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeExecutor struct {
	result storage.ResultSet
	err    error
	calls  int
}

func (f *fakeExecutor) Query(context.Context, string) (storage.ResultSet, error) {
	f.calls++
	if f.err != nil {
		return storage.ResultSet{}, f.err
	}
	return f.result, nil
}
