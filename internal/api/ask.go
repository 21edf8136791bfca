package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/salestory/salestory/internal/auth"
	"github.com/salestory/salestory/internal/chartspec"
	"github.com/salestory/salestory/internal/querygen"
	"github.com/salestory/salestory/internal/story"
)

const analystRole = "analyst"

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question     string                `json:"question"`
	Query        querygen.QueryResult  `json:"query"`
	Story        *story.StoryContent   `json:"story,omitempty"`
	Chart        *chartspec.Suggestion `json:"chart,omitempty"`
	QuickSummary string                `json:"quick_summary,omitempty"`
}

// handleAsk runs the full pipeline for one question: SQL generation and
// execution, narrative synthesis, and a chart suggestion. A failed query
// still returns 200 with the failure recorded in the query envelope so the
// caller can show the reason.
func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil || deps.Synthesizer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "pipeline dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, analystRole); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	result := deps.Generator.Generate(r.Context(), request.Question)
	response := askResponse{Question: request.Question, Query: result}

	if result.Success {
		narrative := deps.Synthesizer.Synthesize(r.Context(), request.Question, result.SQL, result.Rows, result.ColumnNames)
		response.Story = &narrative
		chart := chartspec.Suggest(result.Rows, result.ColumnNames, request.Question)
		response.Chart = &chart
		response.QuickSummary = deps.Synthesizer.QuickSummary(result.Rows, result.ColumnNames)
	}

	writeJSON(w, http.StatusOK, response)
}

func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "query generator is not configured", false, nil)
		return
	}
	if err := requireRole(r, analystRole); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, deps.Generator.Generate(r.Context(), request.Question))
}

type explainRequest struct {
	SQL string `json:"sql"`
}

func handleExplain(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "query generator is not configured", false, nil)
		return
	}
	if err := requireRole(r, analystRole); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request explainRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid explain request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"explanation": deps.Generator.Explain(r.Context(), request.SQL)})
}

func handleSuggest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "query generator is not configured", false, nil)
		return
	}
	if err := requireRole(r, analystRole); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestions": deps.Generator.SuggestQuestions(r.Context(), request.Question)})
}

type storyRequest struct {
	Question    string   `json:"question"`
	SQL         string   `json:"sql"`
	Rows        [][]any  `json:"rows"`
	ColumnNames []string `json:"column_names"`
}

func handleStory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Synthesizer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "story synthesizer is not configured", false, nil)
		return
	}
	if err := requireRole(r, analystRole); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request storyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid story request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	narrative := deps.Synthesizer.Synthesize(r.Context(), request.Question, request.SQL, request.Rows, request.ColumnNames)
	writeJSON(w, http.StatusOK, narrative)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema context is not configured", false, nil)
		return
	}
	if err := requireRole(r, analystRole); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	response := map[string]any{
		"table_name": deps.Schema.TableName,
		"columns":    deps.Schema.Columns,
		"facts":      deps.Schema.Facts,
	}
	if deps.CategoryMap != nil {
		response["categories"] = deps.CategoryMap(r.Context())
	}
	writeJSON(w, http.StatusOK, response)
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return askRequest{}, false
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return askRequest{}, false
	}
	return request, true
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
