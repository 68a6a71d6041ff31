package monitoring

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Connections.Set(3)
	m.EngineErrors.WithLabelValues("produce").Inc()
	m.EngineErrors.WithLabelValues("produce").Inc()

	if v := testutil.ToFloat64(m.Connections); v != 3 {
		t.Errorf("connections %v", v)
	}
	if v := testutil.ToFloat64(m.EngineErrors.WithLabelValues("produce")); v != 2 {
		t.Errorf("engine errors %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"solive_connections 3", `solive_engine_errors_total{op="produce"} 2`, "solive_live_viewers 0"} {
		if !strings.Contains(body, name) {
			t.Errorf("no %v in metrics", name)
		}
	}
}
