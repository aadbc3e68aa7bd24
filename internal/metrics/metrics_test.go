package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCollector_Records(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRPC("/svc/SignIn", "OK", 10*time.Millisecond)
	c.ObserveRPC("/svc/SignIn", "OK", 10*time.Millisecond)
	c.RecordSignIn(SignInRejected)
	c.RecordAssetBytes(100)

	body := scrape(t, reg)
	for _, want := range []string{
		`profilekeeper_rpc_total{code="OK",method="/svc/SignIn"} 2`,
		`profilekeeper_rpc_duration_seconds_count{method="/svc/SignIn"} 2`,
		`profilekeeper_sign_in_total{outcome="rejected"} 1`,
		`profilekeeper_asset_bytes_total 100`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("want panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
