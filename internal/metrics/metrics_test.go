package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定メトリクスのうちラベルが一致するカウンタ値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
				}
			}
			if matched {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordBlobOperation_SeparatesResults は成功と失敗が別ラベルで記録されることを検証する。
func TestRecordBlobOperation_SeparatesResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlobOperation("files", "put", true)
	c.RecordBlobOperation("files", "put", true)
	c.RecordBlobOperation("files", "put", false)

	val, found := counterValue(t, reg, "fileteluss_blob_operations_total",
		map[string]string{"collection": "files", "op": "put", "result": "success"})
	if !found {
		t.Fatal("fileteluss_blob_operations_total{result=success} not found")
	}
	if val != 2 {
		t.Errorf("success = %v, want 2", val)
	}

	val, found = counterValue(t, reg, "fileteluss_blob_operations_total",
		map[string]string{"collection": "files", "op": "put", "result": "failure"})
	if !found {
		t.Fatal("fileteluss_blob_operations_total{result=failure} not found")
	}
	if val != 1 {
		t.Errorf("failure = %v, want 1", val)
	}
}

// TestRecordBlobBytesWritten_AddsBytes は書き込みバイト数が加算されることを検証する。
func TestRecordBlobBytesWritten_AddsBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlobBytesWritten("videos", 1024)
	c.RecordBlobBytesWritten("videos", 512)

	val, found := counterValue(t, reg, "fileteluss_blob_bytes_written_total", map[string]string{"collection": "videos"})
	if !found {
		t.Fatal("fileteluss_blob_bytes_written_total not found")
	}
	if val != 1536 {
		t.Errorf("bytes = %v, want 1536", val)
	}
}

// TestRecordBlobLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordBlobLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlobLatency("files", "get", 100*time.Millisecond)
	c.RecordBlobLatency("files", "get", 2*time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "fileteluss_blob_operation_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("fileteluss_blob_operation_seconds metric not found")
	}
}

// TestRecordAuthOutcome_IncrementsCounterWithLabels は認証結果が操作別に記録されることを検証する。
func TestRecordAuthOutcome_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthOutcome("login", "success")
	c.RecordAuthOutcome("login", "pending")
	c.RecordAuthOutcome("login", "pending")

	val, _ := counterValue(t, reg, "fileteluss_auth_outcomes_total", map[string]string{"action": "login", "outcome": "pending"})
	if val != 2 {
		t.Errorf("login pending = %v, want 2", val)
	}
}

// TestRecordAccessDecision_IncrementsCounterWithLabels はアクセス判定が記録されることを検証する。
func TestRecordAccessDecision_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAccessDecision("admin", "redirect_home")

	val, found := counterValue(t, reg, "fileteluss_access_decisions_total", map[string]string{"scope": "admin", "decision": "redirect_home"})
	if !found || val != 1 {
		t.Errorf("access decision = %v (found=%v), want 1", val, found)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	val, _ := counterValue(t, reg, "fileteluss_http_status_total", map[string]string{"status_code": "200"})
	if val != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
	}
	val, _ = counterValue(t, reg, "fileteluss_http_status_total", map[string]string{"status_code": "404"})
	if val != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlobOperation("files", "put", true)
	c.RecordAuthOutcome("register", "success")
	c.RecordAccessDecision("route", "allow")
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"fileteluss_blob_operations_total",
		"fileteluss_auth_outcomes_total",
		"fileteluss_access_decisions_total",
		"fileteluss_http_status_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordAuthOutcome("login", "success")
	c2.RecordAuthOutcome("login", "success")
	c2.RecordAuthOutcome("login", "success")

	val1, _ := counterValue(t, reg1, "fileteluss_auth_outcomes_total", map[string]string{"action": "login"})
	val2, _ := counterValue(t, reg2, "fileteluss_auth_outcomes_total", map[string]string{"action": "login"})

	if val1 != 1 {
		t.Errorf("reg1 login = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 login = %v, want 2", val2)
	}
}
