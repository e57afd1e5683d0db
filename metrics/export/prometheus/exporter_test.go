package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

type fakeSource struct {
	snapshot sessionjwt.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessionjwt.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestCollectorEmitsOnlyAuditDroppedWhenDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionjwt.MetricsSnapshot{
			Counters:   map[sessionjwt.MetricID]uint64{},
			Histograms: map[sessionjwt.MetricID][]uint64{},
		},
	})

	if got := testutil.CollectAndCount(c); got != 1 {
		t.Fatalf("expected only the audit dropped series, got %d", got)
	}
}

func TestHandlerRendersCountersAndHistograms(t *testing.T) {
	exp, err := NewExporterFromSource(fakeSource{
		snapshot: sessionjwt.MetricsSnapshot{
			Counters: map[sessionjwt.MetricID]uint64{
				sessionjwt.MetricLoginSuccess:  7,
				sessionjwt.MetricRotateSuccess: 3,
			},
			Histograms: map[sessionjwt.MetricID][]uint64{
				sessionjwt.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}

	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		"sessionjwt_login_success_total 7",
		"sessionjwt_rotate_success_total 3",
		`sessionjwt_validate_latency_seconds_bucket{le="0.005"} 1`,
		`sessionjwt_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"sessionjwt_validate_latency_seconds_count 36",
		"sessionjwt_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sessionjwt_rotate_latency_seconds") {
		t.Fatal("absent histogram must not be rendered")
	}
}

func TestCounterValueMatchesSnapshot(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionjwt.MetricsSnapshot{
			Counters: map[sessionjwt.MetricID]uint64{sessionjwt.MetricLogout: 4},
		},
	})

	expected := `
# HELP sessionjwt_logout_total Logout operations.
# TYPE sessionjwt_logout_total counter
sessionjwt_logout_total 4
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "sessionjwt_logout_total"); err != nil {
		t.Fatalf("unexpected collection: %v", err)
	}
}
