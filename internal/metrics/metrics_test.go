package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStep(t *testing.T) {
	before := testutil.ToFloat64(stepsTotal)

	ObserveStep(120*time.Millisecond, 812, 4000)
	ObserveStep(80*time.Millisecond, 790, 4100)

	if got := testutil.ToFloat64(stepsTotal) - before; got != 2 {
		t.Errorf("steps delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(stepCells); got != 790 {
		t.Errorf("step cells = %v, want 790", got)
	}
	if got := testutil.ToFloat64(coveredCells); got != 4100 {
		t.Errorf("covered cells = %v, want 4100", got)
	}
}

func TestSatelliteFailureLabels(t *testing.T) {
	before := testutil.ToFloat64(satelliteFailuresTotal.WithLabelValues(ReasonDomain))
	SatelliteFailure(ReasonDomain)
	SatelliteFailure(ReasonDomain)
	SatelliteFailure(ReasonDegenerate)

	if got := testutil.ToFloat64(satelliteFailuresTotal.WithLabelValues(ReasonDomain)) - before; got != 2 {
		t.Errorf("domain failures delta = %v, want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetSatellites(1584)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"coverage_steps_total", "coverage_satellites 1584", "coverage_step_duration_seconds_bucket"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}
