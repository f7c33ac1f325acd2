package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tableqa/tableqa/internal/auth"
	"github.com/tableqa/tableqa/internal/llm"
	"github.com/tableqa/tableqa/internal/pipeline"
	"github.com/tableqa/tableqa/internal/schema"
)

const maxQuestionBodyBytes = 64 << 10

type questionRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	SQL      string `json:"sql"`
	Result   string `json:"result"`
}

type schemaResponse struct {
	schema.View
	TableInfo string `json:"table_info"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r, auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	resp, err := deps.Asker.Ask(r.Context(), req.Question)
	if err != nil {
		writePipelineError(w, r, resp, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Question: resp.Question,
		Answer:   resp.Answer,
		SQL:      resp.SQL,
		Result:   resp.Result,
	})
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r, auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	result, err := deps.Translator.Translate(r.Context(), req.Question)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SYNTHESIS_FAILED", "failed to translate question into a query", false, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema.IsZero() {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r, auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{View: deps.Schema.View(), TableInfo: deps.Schema.Render()})
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (questionRequest, bool) {
	var req questionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid question request body", false, map[string]any{"details": err.Error()})
		return questionRequest{}, false
	}
	return req, true
}

func writePipelineError(w http.ResponseWriter, r *http.Request, resp pipeline.Response, err error) {
	var pipelineErr *pipeline.Error
	if !errors.As(err, &pipelineErr) {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "internal server error", false, nil)
		return
	}

	details := map[string]any{
		"stage":   string(pipelineErr.Stage),
		"details": pipelineErr.Err.Error(),
	}
	if resp.SQL != "" {
		details["sql"] = resp.SQL
	}

	switch pipelineErr.Kind {
	case pipeline.KindValidation:
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
	case pipeline.KindSynthesis:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SYNTHESIS_FAILED", "failed to translate question into a query", false, details)
	case pipeline.KindDataAccess:
		writeError(r.Context(), w, http.StatusBadGateway, "DATA_ACCESS_FAILED", "failed to run the query against the data store", true, details)
	case pipeline.KindGeneration:
		retryable := true
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			retryable = apiErr.Retryable()
		}
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", "failed to generate an answer", retryable, details)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "internal server error", false, nil)
	}
}
