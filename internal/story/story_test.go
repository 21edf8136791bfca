package story

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/salestory/salestory/internal/llm"
)

func TestSynthesizeNormalStory(t *testing.T) {
	client := &fakeLLM{response: `{
		"executive_summary": "Electronics leads revenue.",
		"key_insights": ["Electronics is the top category"],
		"detailed_analysis": "Electronics outperformed all other categories.",
		"recommendations": ["Invest in electronics inventory"],
		"visualization_suggestions": [{"type": "bar", "description": "Revenue by category"}],
		"follow_up_questions": ["How does this trend monthly?"]
	}`}

	synth := newTestSynthesizer(client)
	story := synth.Synthesize(context.Background(), "Top categories?", "SELECT ...",
		[][]any{{"Electronics", 1500.0}}, []string{"category", "revenue"})

	if story.Status != StatusNormal {
		t.Fatalf("Status = %q", story.Status)
	}
	if story.ExecutiveSummary != "Electronics leads revenue." {
		t.Fatalf("ExecutiveSummary = %q", story.ExecutiveSummary)
	}
	if len(story.Visualizations) != 1 || story.Visualizations[0].Kind != "bar" {
		t.Fatalf("Visualizations = %#v", story.Visualizations)
	}
}

func TestSynthesizeNormalStoryFillsMissingFields(t *testing.T) {
	client := &fakeLLM{response: `{"executive_summary": "Short."}`}
	synth := newTestSynthesizer(client)
	story := synth.Synthesize(context.Background(), "q", "SELECT 1", [][]any{{int64(1)}}, []string{"n"})

	if story.Status != StatusNormal {
		t.Fatalf("Status = %q", story.Status)
	}
	if story.KeyInsights == nil || story.Recommendations == nil || story.Visualizations == nil || story.FollowUpQuestions == nil {
		t.Fatal("missing list fields should be empty, not nil")
	}
}

func TestSynthesizeFallbackStoryOnBadJSON(t *testing.T) {
	client := &fakeLLM{response: "this is not json at all"}
	synth := newTestSynthesizer(client)
	story := synth.Synthesize(context.Background(), "q", "SELECT 1", [][]any{{int64(1)}}, []string{"n"})

	if story.Status != StatusFallback {
		t.Fatalf("Status = %q", story.Status)
	}
	if story.ExecutiveSummary != "Analysis completed successfully, but formatting needs adjustment." {
		t.Fatalf("ExecutiveSummary = %q", story.ExecutiveSummary)
	}
	if !strings.Contains(story.DetailedAnalysis, "this is not json at all") {
		t.Fatalf("DetailedAnalysis = %q, want raw content embedded", story.DetailedAnalysis)
	}
}

func TestSynthesizeErrorStoryOnLLMFailure(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("model unavailable")}
	synth := newTestSynthesizer(client)
	story := synth.Synthesize(context.Background(), "q", "SELECT 1", [][]any{{int64(1)}}, []string{"n"})

	if story.Status != StatusError {
		t.Fatalf("Status = %q", story.Status)
	}
	if !strings.Contains(story.ExecutiveSummary, "model unavailable") {
		t.Fatalf("ExecutiveSummary = %q, want cause embedded", story.ExecutiveSummary)
	}
	if len(story.Visualizations) != 1 || story.Visualizations[0].Kind != "table" {
		t.Fatalf("Visualizations = %#v", story.Visualizations)
	}
}

func TestNumericStats(t *testing.T) {
	rows := [][]any{{10.0}, {20.0}, {30.0}}
	stats, ok := numericStats(rows, 0)
	if !ok {
		t.Fatal("numericStats() ok = false")
	}
	if stats.min != 10 || stats.max != 30 || stats.mean != 20 {
		t.Fatalf("stats = %+v", stats)
	}
	if math.Abs(stats.std-10) > 0.0001 {
		t.Fatalf("std = %v, want 10 (sample deviation)", stats.std)
	}
}

func TestNumericStatsSingleRowZeroStd(t *testing.T) {
	stats, ok := numericStats([][]any{{42.0}}, 0)
	if !ok {
		t.Fatal("numericStats() ok = false")
	}
	if stats.std != 0 {
		t.Fatalf("std = %v, want 0 for single row", stats.std)
	}
}

func TestNumericStatsRejectsMixedColumn(t *testing.T) {
	if _, ok := numericStats([][]any{{10.0}, {"text"}}, 0); ok {
		t.Fatal("numericStats() ok = true for mixed column")
	}
}

func TestQuickSummary(t *testing.T) {
	synth := newTestSynthesizer(&fakeLLM{})
	rows := [][]any{
		{"Electronics", 1500.0},
		{"Clothing", 1200.0},
		{"Books", 800.0},
	}
	got := synth.QuickSummary(rows, []string{"category", "revenue"})
	if !strings.Contains(got, "3 rows with 2 columns") {
		t.Fatalf("QuickSummary() = %q", got)
	}
	if !strings.Contains(got, "revenue ranges from 800.00 to 1500.00") {
		t.Fatalf("QuickSummary() = %q", got)
	}
	if !strings.Contains(got, "3 unique category values") {
		t.Fatalf("QuickSummary() = %q", got)
	}
}

func TestQuickSummaryToleratesRaggedRows(t *testing.T) {
	synth := newTestSynthesizer(&fakeLLM{})
	rows := [][]any{
		{int64(1), "Electronics"},
		{int64(2)},
	}
	got := synth.QuickSummary(rows, []string{"count", "category"})
	if !strings.Contains(got, "2 rows with 2 columns") {
		t.Fatalf("QuickSummary() = %q", got)
	}
	if !strings.Contains(got, "1 unique category values") {
		t.Fatalf("QuickSummary() = %q", got)
	}
}

func TestDescribeColumnsToleratesRaggedRows(t *testing.T) {
	rows := [][]any{
		{"Electronics", int64(10)},
		{"Books"},
	}
	got := describeColumns(rows, []string{"category", "count"})
	if !strings.Contains(got, "category (categorical): 2 unique values") {
		t.Fatalf("describeColumns() = %q", got)
	}
	if !strings.Contains(got, "count (categorical): 1 unique values") {
		t.Fatalf("describeColumns() = %q", got)
	}
}

func TestQuickSummaryNoRows(t *testing.T) {
	synth := newTestSynthesizer(&fakeLLM{})
	if got := synth.QuickSummary(nil, []string{"a"}); got != "No data found for the given query." {
		t.Fatalf("QuickSummary() = %q", got)
	}
}

func newTestSynthesizer(client llm.Client) *Synthesizer {
	return NewSynthesizer(client, slog.New(slog.NewTextHandler(io.Discard, nil)), 10000)
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
