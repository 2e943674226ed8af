package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecorders(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	m.RecordVerify("ok")
	m.RecordVerify("ok")
	m.RecordVerify("expired")
	m.RecordRedirect("main_to_admin")
	m.RecordLogin(true)
	m.RecordLogin(false)
	m.RecordLogout(false)
	m.RecordExpirySignal()
	m.RecordRequest("GET", 401, 10*time.Millisecond)
	m.RecordRequest("GET", 0, time.Millisecond)

	if got := metricCounterValue(t, m.verifyTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("verify_total(ok) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.verifyTotal.WithLabelValues("expired")); got != 1 {
		t.Errorf("verify_total(expired) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.redirectsTotal.WithLabelValues("main_to_admin")); got != 1 {
		t.Errorf("redirects_total = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.loginsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("logins_total(failure) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.logoutsTotal.WithLabelValues("false")); got != 1 {
		t.Errorf("logouts_total(false) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.expirySignals); got != 1 {
		t.Errorf("session_expired_signals_total = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("GET", "4xx")); got != 1 {
		t.Errorf("client_requests_total(4xx) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("GET", "error")); got != 1 {
		t.Errorf("client_requests_total(error) = %v, want 1", got)
	}
}

func TestPromptGauge(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	m.SetPromptActive(true)
	if got := metricGaugeValue(t, m.promptsActive); got != 1 {
		t.Fatalf("expiry_prompts_active = %v, want 1", got)
	}
	m.SetPromptActive(false)
	if got := metricGaugeValue(t, m.promptsActive); got != 0 {
		t.Fatalf("expiry_prompts_active = %v, want 0", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordVerify("ok")
	m.RecordRedirect("none")
	m.RecordLogin(true)
	m.RecordLogout(true)
	m.RecordExpirySignal()
	m.SetPromptActive(true)
	m.RecordRequest("POST", 200, time.Second)
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "error", 200: "2xx", 204: "2xx", 302: "3xx", 401: "4xx", 503: "5xx", 700: "error"}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
