// Package querygen turns natural-language questions into executed SQL
// results. The pipeline is generate, guard, execute, reconcile: the model
// output is never trusted past the safety policy, and column names claimed
// by SQL text are corrected against the executed row shape.
package querygen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/salestory/salestory/internal/columns"
	"github.com/salestory/salestory/internal/llm"
	"github.com/salestory/salestory/internal/observability"
	"github.com/salestory/salestory/internal/schema"
	"github.com/salestory/salestory/internal/sqlguard"
	"github.com/salestory/salestory/internal/storage"
)

// QueryResult is the canonical outcome of a question. Success is the only
// field callers should branch on: ErrorMessage is set exactly when Success
// is false, and Rows/ColumnNames are populated exactly when it is true.
type QueryResult struct {
	Success      bool     `json:"success"`
	SQL          string   `json:"sql,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	ColumnNames  []string `json:"column_names,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
	Note         string   `json:"note,omitempty"`
	Truncated    bool     `json:"truncated,omitempty"`
}

type Generator struct {
	llm       llm.Client
	store     storage.Executor
	schema    *schema.Context
	logger    *slog.Logger
	maxRows   int
	maxTokens int
}

func NewGenerator(client llm.Client, store storage.Executor, schemaCtx *schema.Context, logger *slog.Logger, maxRows, maxTokens int) *Generator {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Generator{
		llm:       client,
		store:     store,
		schema:    schemaCtx,
		logger:    logger,
		maxRows:   maxRows,
		maxTokens: maxTokens,
	}
}

// Generate runs the full question-to-rows pipeline. Failures at any stage
// are reported inside the QueryResult rather than as an error return; the
// pipeline itself never panics or retries.
func (g *Generator) Generate(ctx context.Context, question string) QueryResult {
	observability.ObserveQuestion()

	generationStart := time.Now()
	raw, err := g.llm.Complete(ctx, g.buildPrompt(question), g.maxTokens)
	observability.ObserveStageDuration("sql_generation", time.Since(generationStart))
	if err != nil {
		g.logger.ErrorContext(ctx, "sql generation failed", "error", err)
		return QueryResult{Success: false, ErrorMessage: fmt.Sprintf("SQL generation failed: %v", err)}
	}

	sqlText := llm.StripFence(raw)
	if !sqlguard.Validate(sqlText) {
		observability.ObserveValidationRejection()
		g.logger.WarnContext(ctx, "generated query rejected by safety policy", "sql", sqlText)
		return QueryResult{Success: false, SQL: sqlText, ErrorMessage: "Generated query failed validation"}
	}

	executionStart := time.Now()
	result, err := g.store.Query(ctx, sqlText)
	observability.ObserveStageDuration("execution", time.Since(executionStart))
	if err != nil {
		observability.ObserveExecutionFailure()
		g.logger.ErrorContext(ctx, "query execution failed", "sql", sqlText, "error", err)
		return QueryResult{Success: false, SQL: sqlText, ErrorMessage: fmt.Sprintf("Query execution failed: %v", err)}
	}
	observability.ObserveQueryRows(len(result.Rows))

	columnNames := []string{}
	if len(result.Rows) > 0 {
		inferred := columns.Infer(sqlText)
		if len(inferred) == 0 {
			inferred = columns.Synthetic(len(result.Rows[0]))
		}
		columnNames = columns.Reconcile(result.Rows, inferred)
		if len(inferred) != len(columnNames) {
			observability.ObserveColumnReconciliation()
			g.logger.WarnContext(ctx, "column names reconciled against row width",
				"claimed", len(inferred), "actual", len(columnNames), "sql", sqlText)
		}
	}

	note := fmt.Sprintf("%d rows returned", len(result.Rows))
	if result.Truncated {
		note += fmt.Sprintf(" (truncated to the %d row limit)", g.maxRows)
	}

	return QueryResult{
		Success:     true,
		SQL:         sqlText,
		Rows:        result.Rows,
		ColumnNames: columnNames,
		Note:        note,
		Truncated:   result.Truncated,
	}
}

// Explain renders a business-level description of a SQL query. It never
// fails; on any error a fixed message is returned.
func (g *Generator) Explain(ctx context.Context, sqlText string) string {
	prompt := fmt.Sprintf(
		"Explain this SQL query in simple business terms:\n\n%s\n\nProvide a clear, non-technical explanation of what this query does and what insights it provides.",
		sqlText)
	response, err := g.llm.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, g.maxTokens)
	if err != nil {
		g.logger.WarnContext(ctx, "query explanation failed", "error", err)
		return "Could not generate explanation for this query."
	}
	return strings.TrimSpace(response)
}

// SuggestQuestions proposes up to five follow-up questions. An empty slice
// is returned on any failure.
func (g *Generator) SuggestQuestions(ctx context.Context, question string) []string {
	prompt := fmt.Sprintf(
		"Based on this e-commerce analytics question: %q\n\nSuggest 5 related questions that would provide additional business insights.\nReturn only the questions, one per line, without numbering.",
		question)
	response, err := g.llm.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, g.maxTokens)
	if err != nil {
		g.logger.WarnContext(ctx, "question suggestion failed", "error", err)
		return []string{}
	}

	suggestions := make([]string, 0, 5)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == 5 {
			break
		}
	}
	return suggestions
}

func (g *Generator) buildPrompt(question string) []llm.Message {
	var system strings.Builder
	system.WriteString("You are an expert SQL analyst for an e-commerce database. Your task is to generate accurate SQL queries based on natural language questions.\n\n")
	system.WriteString(g.schema.PromptText())
	system.WriteString("\nIMPORTANT RULES:\n")
	fmt.Fprintf(&system, "1. ALWAYS use the table name '%s' (no other tables exist)\n", g.schema.TableName)
	system.WriteString("2. Use exact column names as provided in the schema\n")
	system.WriteString("3. Apply appropriate WHERE clauses, GROUP BY, ORDER BY as needed\n")
	fmt.Fprintf(&system, "4. Use LIMIT %d for queries that might return many rows\n", g.maxRows)
	system.WriteString("5. For date queries, use DATE functions properly (dates are in YYYY-MM-DD format)\n")
	system.WriteString("6. Return only the SQL query, no explanations or formatting\n")
	system.WriteString("7. Ensure queries are syntactically correct for DuckDB\n")
	system.WriteString("8. Use appropriate aggregation functions (SUM, COUNT, AVG, etc.)\n")
	system.WriteString("9. For price calculations, multiply product_price by quantity_ordered\n")
	system.WriteString("10. Consider both product_category and product_subcategory for detailed analysis\n")
	system.WriteString("\nDUCKDB-SPECIFIC COMPATIBILITY:\n")
	system.WriteString("- For percentiles, use QUANTILE_CONT(value, percentile) instead of APPROXIMATE_PERCENTILE\n")
	system.WriteString("- For standard deviation, use STDDEV_SAMP() or STDDEV_POP()\n")
	system.WriteString("- For variance, use VAR_SAMP() or VAR_POP()\n")
	system.WriteString("- Window functions: ROW_NUMBER(), RANK(), DENSE_RANK() are supported\n")

	user := fmt.Sprintf("Generate a SQL query for this question: %s\n\nReturn only the SQL query, no additional text or formatting.", question)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: user},
	}
}
