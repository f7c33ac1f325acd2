package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tableqa/tableqa/internal/llm"
	"github.com/tableqa/tableqa/internal/nl2sql"
	"github.com/tableqa/tableqa/internal/pipeline"
	"github.com/tableqa/tableqa/internal/schema"
)

type fakeAsker struct {
	response pipeline.Response
	err      error
	calls    int
	last     string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (pipeline.Response, error) {
	f.calls++
	f.last = question
	return f.response, f.err
}

type fakeTranslator struct {
	result nl2sql.Result
	err    error
}

func (f fakeTranslator) Translate(context.Context, string) (nl2sql.Result, error) {
	return f.result, f.err
}

func TestAskReturnsAnswer(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	asker := &fakeAsker{response: pipeline.Response{
		Question: "What is the average premium for female policyholders?",
		SQL:      "SELECT AVG(premium) FROM medical_insurance WHERE sex = 'female'",
		Result:   "1234.56",
		Answer:   "The average premium for female policyholders is 1234.56.",
	}}

	h := NewHandler(cfg, Dependencies{Asker: asker})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, questionRequestFor("What is the average premium for female policyholders?"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var body askResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.Answer != asker.response.Answer || body.Result != "1234.56" || body.SQL != asker.response.SQL {
		t.Fatalf("body = %+v", body)
	}
	if asker.last != "What is the average premium for female policyholders?" {
		t.Fatalf("asker question = %q", asker.last)
	}
}

func TestAskMapsPipelineErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{
			name:   "validation",
			err:    &pipeline.Error{Kind: pipeline.KindValidation, Stage: pipeline.StateIdle, Err: pipeline.ErrEmptyQuestion},
			status: http.StatusBadRequest,
			code:   "QUESTION_REQUIRED",
		},
		{
			name:   "synthesis",
			err:    &pipeline.Error{Kind: pipeline.KindSynthesis, Stage: pipeline.StateSynthesizing, Err: errors.New("model unavailable")},
			status: http.StatusUnprocessableEntity,
			code:   "SYNTHESIS_FAILED",
		},
		{
			name:      "data access",
			err:       &pipeline.Error{Kind: pipeline.KindDataAccess, Stage: pipeline.StateExecuting, Err: errors.New("connection refused")},
			status:    http.StatusBadGateway,
			code:      "DATA_ACCESS_FAILED",
			retryable: true,
		},
		{
			name:      "generation retryable",
			err:       &pipeline.Error{Kind: pipeline.KindGeneration, Stage: pipeline.StateComposing, Err: &llm.APIError{Provider: "openai", StatusCode: 503}},
			status:    http.StatusBadGateway,
			code:      "GENERATION_FAILED",
			retryable: true,
		},
		{
			name:   "generation rejected",
			err:    &pipeline.Error{Kind: pipeline.KindGeneration, Stage: pipeline.StateComposing, Err: fmt.Errorf("compose: %w", &llm.APIError{Provider: "openai", StatusCode: 400})},
			status: http.StatusBadGateway,
			code:   "GENERATION_FAILED",
		},
		{
			name:   "unclassified",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "INTERNAL",
		},
	}

	cfg := loadConfig(t, map[string]string{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(cfg, Dependencies{Asker: &fakeAsker{
				response: pipeline.Response{SQL: "SELECT 1"},
				err:      tc.err,
			}})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, questionRequestFor("question"))

			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d, body=%s", rr.Code, tc.status, rr.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("json decode failed: %v", err)
			}
			if body["error_code"] != tc.code {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tc.code)
			}
			if body["retryable"] != tc.retryable {
				t.Fatalf("retryable = %v, want %v", body["retryable"], tc.retryable)
			}
		})
	}
}

func TestAskIncludesFailedStageAndSQL(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{Asker: &fakeAsker{
		response: pipeline.Response{SQL: "SELECT COUNT(*) FROM medical_insurance"},
		err:      &pipeline.Error{Kind: pipeline.KindDataAccess, Stage: pipeline.StateExecuting, Err: errors.New("timeout")},
	}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, questionRequestFor("How many?"))

	var body struct {
		Context map[string]any `json:"context"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.Context["stage"] != "executing" {
		t.Fatalf("stage = %v", body.Context["stage"])
	}
	if body.Context["sql"] != "SELECT COUNT(*) FROM medical_insurance" {
		t.Fatalf("sql = %v", body.Context["sql"])
	}
}

func TestAskRejectsInvalidJSON(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	asker := &fakeAsker{}
	h := NewHandler(cfg, Dependencies{Asker: asker})

	for _, payload := range []string{`{"question":`, `{"question":"q","extra":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("payload %q status = %d", payload, rr.Code)
		}
		if code := decodeErrorCode(t, rr); code != "INVALID_JSON" {
			t.Fatalf("payload %q error_code = %q", payload, code)
		}
	}
	if asker.calls != 0 {
		t.Fatalf("asker calls = %d, want 0", asker.calls)
	}
}

func TestAskNotConfigured(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, questionRequestFor("q"))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranslateReturnsSQL(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{Translator: fakeTranslator{result: nl2sql.Result{
		SQL:      "SELECT COUNT(*) FROM medical_insurance",
		Provider: "mock",
		Model:    "mock",
	}}})

	req := httptest.NewRequest(http.MethodPost, "/v1/query/translate", strings.NewReader(`{"question":"How many?"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var body nl2sql.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.SQL != "SELECT COUNT(*) FROM medical_insurance" {
		t.Fatalf("sql = %q", body.SQL)
	}
}

func TestTranslateErrors(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{Translator: fakeTranslator{err: nl2sql.ErrInvalidSQL}})

	blank := httptest.NewRecorder()
	h.ServeHTTP(blank, httptest.NewRequest(http.MethodPost, "/v1/query/translate", strings.NewReader(`{"question":"   "}`)))
	if blank.Code != http.StatusBadRequest {
		t.Fatalf("blank status = %d", blank.Code)
	}

	failed := httptest.NewRecorder()
	h.ServeHTTP(failed, httptest.NewRequest(http.MethodPost, "/v1/query/translate", strings.NewReader(`{"question":"drop it"}`)))
	if failed.Code != http.StatusUnprocessableEntity {
		t.Fatalf("failed status = %d", failed.Code)
	}
	if code := decodeErrorCode(t, failed); code != "SYNTHESIS_FAILED" {
		t.Fatalf("error_code = %q", code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	descriptor, err := schema.New("mysql", "medical_insurance", []schema.Column{
		{Name: "age", Type: "int"},
		{Name: "sex", Type: "varchar(10)"},
	}, [][]string{{"19", "female"}})
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}

	h := NewHandler(cfg, Dependencies{Schema: descriptor})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		TableName string          `json:"table_name"`
		Columns   []schema.Column `json:"columns"`
		TableInfo string          `json:"table_info"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.TableName != "medical_insurance" || len(body.Columns) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if !strings.Contains(body.TableInfo, "medical_insurance") {
		t.Fatalf("table_info = %q", body.TableInfo)
	}
}
