// Package story turns executed query results into narrative business
// analysis. Synthesis degrades in two documented steps: a model failure
// yields an error story, an unparseable model response yields a fallback
// story carrying the raw text. Callers always receive a complete
// StoryContent.
package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/salestory/salestory/internal/columns"
	"github.com/salestory/salestory/internal/llm"
	"github.com/salestory/salestory/internal/observability"
)

type Status string

const (
	StatusNormal   Status = "normal"
	StatusFallback Status = "fallback"
	StatusError    Status = "error"
)

type Visualization struct {
	Kind        string `json:"type"`
	Description string `json:"description"`
}

type StoryContent struct {
	Status            Status          `json:"status"`
	ExecutiveSummary  string          `json:"executive_summary"`
	KeyInsights       []string        `json:"key_insights"`
	DetailedAnalysis  string          `json:"detailed_analysis"`
	Recommendations   []string        `json:"recommendations"`
	Visualizations    []Visualization `json:"visualization_suggestions"`
	FollowUpQuestions []string        `json:"follow_up_questions"`
}

type Synthesizer struct {
	llm       llm.Client
	logger    *slog.Logger
	maxTokens int
}

func NewSynthesizer(client llm.Client, logger *slog.Logger, maxTokens int) *Synthesizer {
	return &Synthesizer{llm: client, logger: logger, maxTokens: maxTokens}
}

// Synthesize produces the narrative for an executed query. The column names
// are reconciled against row width here as well, so the narrative stays
// coherent even if the caller passed an unreconciled pair.
func (s *Synthesizer) Synthesize(ctx context.Context, question, sqlText string, rows [][]any, columnNames []string) StoryContent {
	names := columns.Reconcile(rows, columnNames)
	if len(rows) > 0 && len(names) == 0 {
		names = columns.Synthetic(len(rows[0]))
	}

	start := time.Now()
	raw, err := s.llm.Complete(ctx, s.buildPrompt(question, sqlText, rows, names), s.maxTokens)
	observability.ObserveStageDuration("narrative", time.Since(start))
	if err != nil {
		observability.ObserveNarrativeFallback("error")
		s.logger.ErrorContext(ctx, "story generation failed", "error", err)
		return errorStory(err.Error())
	}

	cleaned := llm.StripFence(raw)
	var parsed struct {
		ExecutiveSummary  string          `json:"executive_summary"`
		KeyInsights       []string        `json:"key_insights"`
		DetailedAnalysis  string          `json:"detailed_analysis"`
		Recommendations   []string        `json:"recommendations"`
		Visualizations    []Visualization `json:"visualization_suggestions"`
		FollowUpQuestions []string        `json:"follow_up_questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		observability.ObserveNarrativeFallback("fallback")
		s.logger.WarnContext(ctx, "story response was not valid json", "error", err)
		return fallbackStory(cleaned)
	}

	content := StoryContent{
		Status:            StatusNormal,
		ExecutiveSummary:  parsed.ExecutiveSummary,
		KeyInsights:       parsed.KeyInsights,
		DetailedAnalysis:  parsed.DetailedAnalysis,
		Recommendations:   parsed.Recommendations,
		Visualizations:    parsed.Visualizations,
		FollowUpQuestions: parsed.FollowUpQuestions,
	}
	if content.KeyInsights == nil {
		content.KeyInsights = []string{}
	}
	if content.Recommendations == nil {
		content.Recommendations = []string{}
	}
	if content.Visualizations == nil {
		content.Visualizations = []Visualization{}
	}
	if content.FollowUpQuestions == nil {
		content.FollowUpQuestions = []string{}
	}
	return content
}

// QuickSummary renders a one-line deterministic description of a result set
// without involving the model.
func (s *Synthesizer) QuickSummary(rows [][]any, columnNames []string) string {
	if len(rows) == 0 {
		return "No data found for the given query."
	}
	names := columns.Reconcile(rows, columnNames)
	if len(names) == 0 {
		names = columns.Synthetic(len(rows[0]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query returned %d rows with %d columns. ", len(rows), len(names))

	for i, name := range names {
		if stat, ok := numericStats(rows, i); ok {
			fmt.Fprintf(&b, "The %s ranges from %.2f to %.2f. ", name, stat.min, stat.max)
			break
		}
	}
	for i, name := range names {
		if _, ok := numericStats(rows, i); ok {
			continue
		}
		distinct := map[string]struct{}{}
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			distinct[fmt.Sprint(row[i])] = struct{}{}
		}
		fmt.Fprintf(&b, "There are %d unique %s values. ", len(distinct), name)
		break
	}
	return strings.TrimSpace(b.String())
}

func (s *Synthesizer) buildPrompt(question, sqlText string, rows [][]any, names []string) []llm.Message {
	system := `You are a senior business analyst specializing in e-commerce analytics. Your task is to create comprehensive, actionable business stories from data analysis results.

Create a well-structured analysis that includes:
1. Executive Summary (2-3 sentences)
2. Key Insights (3-5 bullet points)
3. Detailed Analysis (2-3 paragraphs)
4. Recommendations (3-5 actionable items)
5. Visualization Suggestions (2-3 chart types with descriptions)
6. Follow-up Questions (3-5 related questions)

Format your response as JSON with the following structure:
{
  "executive_summary": "Brief summary of main findings",
  "key_insights": ["Insight 1", "Insight 2", "Insight 3"],
  "detailed_analysis": "Detailed explanation of findings and their business implications",
  "recommendations": ["Recommendation 1", "Recommendation 2", "Recommendation 3"],
  "visualization_suggestions": [
    {"type": "chart_type", "description": "What this chart shows"}
  ],
  "follow_up_questions": ["Question 1", "Question 2", "Question 3"]
}

Focus on business implications, trends and anomalies, opportunities for growth, practical recommendations, and clear non-technical language. Respond with JSON only.`

	var user strings.Builder
	user.WriteString("Analyze the following e-commerce data and create a comprehensive business story:\n\n")
	fmt.Fprintf(&user, "Original Question: %s\n\n", question)
	fmt.Fprintf(&user, "SQL Query: %s\n\n", sqlText)
	fmt.Fprintf(&user, "Data Summary:\n- Total rows: %d\n- Columns: %s\n\n", len(rows), strings.Join(names, ", "))

	user.WriteString("Sample Data:\n")
	sampleCount := len(rows)
	if sampleCount > 5 {
		sampleCount = 5
	}
	for _, row := range rows[:sampleCount] {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		fmt.Fprintf(&user, "- %s\n", strings.Join(cells, " | "))
	}

	user.WriteString("\nData Insights:\n")
	user.WriteString(describeColumns(rows, names))
	user.WriteString("\nPlease provide a comprehensive business analysis in JSON format.")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

// describeColumns renders per-column statistics for the prompt: range, mean
// and sample standard deviation for numeric columns, distinct counts and top
// values for everything else.
func describeColumns(rows [][]any, names []string) string {
	if len(rows) == 0 {
		return "- no rows\n"
	}
	var b strings.Builder
	for i, name := range names {
		if stat, ok := numericStats(rows, i); ok {
			fmt.Fprintf(&b, "- %s (numeric): min=%.2f max=%.2f mean=%.2f std=%.2f\n",
				name, stat.min, stat.max, stat.mean, stat.std)
			continue
		}
		counts := map[string]int{}
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			counts[fmt.Sprint(row[i])]++
		}
		type freq struct {
			value string
			count int
		}
		ranked := make([]freq, 0, len(counts))
		for value, count := range counts {
			ranked = append(ranked, freq{value, count})
		}
		sort.Slice(ranked, func(a, b int) bool {
			if ranked[a].count != ranked[b].count {
				return ranked[a].count > ranked[b].count
			}
			return ranked[a].value < ranked[b].value
		})
		if len(ranked) > 5 {
			ranked = ranked[:5]
		}
		top := make([]string, 0, len(ranked))
		for _, entry := range ranked {
			top = append(top, fmt.Sprintf("%s (%d)", entry.value, entry.count))
		}
		fmt.Fprintf(&b, "- %s (categorical): %d unique values, top: %s\n", name, len(counts), strings.Join(top, ", "))
	}
	return b.String()
}

type columnStats struct {
	min  float64
	max  float64
	mean float64
	std  float64
}

// numericStats reports stats for column index i if every value in the column
// is numeric. Standard deviation is the sample deviation, zero for a single
// row.
func numericStats(rows [][]any, i int) (columnStats, bool) {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if i >= len(row) {
			return columnStats{}, false
		}
		value, ok := asFloat(row[i])
		if !ok {
			return columnStats{}, false
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return columnStats{}, false
	}

	stats := columnStats{min: values[0], max: values[0]}
	var sum float64
	for _, value := range values {
		if value < stats.min {
			stats.min = value
		}
		if value > stats.max {
			stats.max = value
		}
		sum += value
	}
	stats.mean = sum / float64(len(values))

	if len(values) > 1 {
		var squared float64
		for _, value := range values {
			squared += (value - stats.mean) * (value - stats.mean)
		}
		stats.std = math.Sqrt(squared / float64(len(values)-1))
	}
	return stats, true
}

func asFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}

func fallbackStory(rawContent string) StoryContent {
	excerpt := rawContent
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}
	return StoryContent{
		Status:           StatusFallback,
		ExecutiveSummary: "Analysis completed successfully, but formatting needs adjustment.",
		KeyInsights: []string{
			"Data analysis was performed successfully",
			"Results are available for review",
			"Additional processing may be needed for optimal presentation",
		},
		DetailedAnalysis: fmt.Sprintf("Raw analysis results: %s...", excerpt),
		Recommendations: []string{
			"Review the raw analysis results",
			"Consider re-running the analysis",
			"Check data format and structure",
		},
		Visualizations: []Visualization{
			{Kind: "bar", Description: "Standard bar chart for categorical data"},
			{Kind: "line", Description: "Time series chart for trends"},
		},
		FollowUpQuestions: []string{
			"What specific metrics are most important?",
			"Are there any data quality issues?",
			"What time period should we focus on?",
		},
	}
}

func errorStory(errorMessage string) StoryContent {
	return StoryContent{
		Status:           StatusError,
		ExecutiveSummary: fmt.Sprintf("Story generation encountered an error: %s", errorMessage),
		KeyInsights: []string{
			"Story generation process failed",
			"Data may still be available for manual review",
			"Technical issue needs to be resolved",
		},
		DetailedAnalysis: fmt.Sprintf("The story generation process failed with the following error: %s. Please check the data format and try again.", errorMessage),
		Recommendations: []string{
			"Review the error message and data format",
			"Check system configuration and API keys",
			"Try with a simpler query or smaller dataset",
		},
		Visualizations: []Visualization{
			{Kind: "table", Description: "Raw data table for manual review"},
		},
		FollowUpQuestions: []string{
			"Is the data format correct?",
			"Are all required fields present?",
			"Should we simplify the analysis?",
		},
	}
}
