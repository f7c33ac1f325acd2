package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "grafana", "tableqa_dashboard.json")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}

	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "tableqa_rules.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rules file: %v", err)
	}
	text := string(content)

	requiredAlerts := []string{
		"TableQAAskLatencyP95High",
		"TableQAAskFailureRatioHigh",
		"TableQADataAccessFailures",
		"TableQAGenerationFailures",
		"TableQAHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}

	requiredMetrics := []string{
		"tableqa:slo_ask_latency_ms_p95",
		"tableqa:slo_ask_failure_ratio_5m",
		"tableqa:slo_data_access_failures_15m",
		"tableqa:slo_generation_failures_15m",
		"tableqa:slo_http_error_rate_5m",
	}
	for _, metricName := range requiredMetrics {
		matched, err := regexp.MatchString(regexp.QuoteMeta(metricName), text)
		if err != nil {
			t.Fatalf("regexp error for metric %q: %v", metricName, err)
		}
		if !matched {
			t.Fatalf("rules missing metric reference %q", metricName)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "prometheus-scrape.example.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scrape example: %v", err)
	}
	text := string(content)

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"tableqa_rules.yaml",
		"tableqa_recording_rules.yaml",
		"job_name: tableqa-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

// Recording rules may only reference series the api actually exports.
func TestPrometheusRecordingRulesReferenceExportedMetrics(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "tableqa_recording_rules.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recording rules file: %v", err)
	}
	text := string(content)

	requiredRecords := []string{
		"tableqa:slo_ask_latency_ms_p95",
		"tableqa:slo_synthesis_latency_ms_p95",
		"tableqa:slo_execution_latency_ms_p95",
		"tableqa:slo_composition_latency_ms_p95",
		"tableqa:slo_ask_failure_ratio_5m",
		"tableqa:slo_data_access_failures_15m",
		"tableqa:slo_generation_failures_15m",
		"tableqa:slo_inflight_questions",
		"tableqa:slo_http_error_rate_5m",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("recording rules missing record %q", recordName)
		}
	}

	exported := map[string]bool{
		"tableqa_ask_requests_total":  true,
		"tableqa_ask_latency_ms":      true,
		"tableqa_stage_latency_ms":    true,
		"tableqa_inflight_questions":  true,
		"tableqa_http_requests_total": true,
	}
	for _, match := range regexp.MustCompile(`tableqa_[a-z_]+`).FindAllString(text, -1) {
		name := strings.TrimSuffix(match, "_bucket")
		if !exported[name] {
			t.Fatalf("recording rules reference unknown metric %q", match)
		}
	}
}

func TestAlertmanagerExampleContainsSeverityRouting(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "alertmanager", "alertmanager.example.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alertmanager example: %v", err)
	}
	text := string(content)

	requiredTokens := []string{
		"receiver: tableqa-default",
		"severity=\"critical\"",
		"severity=\"warning\"",
		"name: tableqa-critical",
		"name: tableqa-warning",
		"inhibit_rules:",
		"group_by: [alertname, service, severity]",
	}
	for _, token := range requiredTokens {
		if !strings.Contains(text, token) {
			t.Fatalf("alertmanager example missing token %q", token)
		}
	}
}

func TestComposeGrantsReaderSelectOnly(t *testing.T) {
	root := repoRoot(t)
	content, err := os.ReadFile(filepath.Join(root, "deployments", "mysql", "init.sql"))
	if err != nil {
		t.Fatalf("read init.sql: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "GRANT SELECT ON helth_insurance.medical_insurance TO 'tableqa_reader'@'%';") {
		t.Fatal("reader account must be granted SELECT only")
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
