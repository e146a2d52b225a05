package nbi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/signalsfoundry/logistics-simulator/analysis"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/observability"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/internal/store"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHTTPHealthAndStatus(t *testing.T) {
	state, rec := newRunState(t)
	h := NewHTTPHandler(HTTPOptions{State: state})

	if rr := get(t, h, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("/healthz = %d", rr.Code)
	}

	rr := get(t, h, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/status = %d", rr.Code)
	}
	var st StatusView
	decodeBody(t, rr, &st)
	if st.Scenario == nil || st.Scenario.Name != "depot" || st.LatestRun != rec.ID {
		t.Fatalf("/status = %+v", st)
	}

	rr = get(t, h, "/runs", nil)
	var runs []RunInfo
	decodeBody(t, rr, &runs)
	if len(runs) != 1 || runs[0].RunID != rec.ID {
		t.Fatalf("/runs = %+v", runs)
	}
}

func TestHTTPResults(t *testing.T) {
	state, rec := newRunState(t)
	h := NewHTTPHandler(HTTPOptions{State: state})

	rr := get(t, h, "/results?run="+rec.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/results = %d: %s", rr.Code, rr.Body.String())
	}
	var view ResultView
	decodeBody(t, rr, &view)
	if view.Run.RunID != rec.ID || len(view.States) != len(rec.Result.States) {
		t.Fatalf("/results = %+v", view.Run)
	}

	if rr := get(t, h, "/results?run=missing", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("/results missing run = %d, want 404", rr.Code)
	}

	empty := sim.NewScenarioState(kb.NewKnowledgeBase(), logging.Noop())
	if rr := get(t, NewHTTPHandler(HTTPOptions{State: empty}), "/results", nil); rr.Code != http.StatusConflict {
		t.Fatalf("/results without run = %d, want 409", rr.Code)
	}
}

func TestHTTPRepairs(t *testing.T) {
	state, rec := newRunState(t)
	h := NewHTTPHandler(HTTPOptions{State: state})

	rr := get(t, h, "/repairs?run="+rec.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/repairs = %d: %s", rr.Code, rr.Body.String())
	}
	var tables []analysis.RepairTable
	decodeBody(t, rr, &tables)
	if len(tables) != 0 {
		t.Fatalf("/repairs = %+v, want no crewed missions", tables)
	}

	if rr := get(t, h, "/repairs?run=missing", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("/repairs missing run = %d, want 404", rr.Code)
	}
}

func TestHTTPMetricsAndCORS(t *testing.T) {
	state, _ := newRunState(t)
	collector, err := observability.NewSimulationCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	h := NewHTTPHandler(HTTPOptions{
		State:          state,
		Metrics:        collector.Handler(),
		AllowedOrigins: []string{"https://ops.example"},
	})

	if rr := get(t, h, "/metrics", nil); rr.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rr.Code)
	}

	rr := get(t, h, "/status", http.Header{"Origin": {"https://ops.example"}})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example" {
		t.Fatalf("allowed origin header = %q", got)
	}
	rr = get(t, h, "/status", http.Header{"Origin": {"https://evil.example"}})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin echoed: %q", got)
	}
}

func TestHTTPArchive(t *testing.T) {
	state, rec := newRunState(t)
	archive, err := store.Open(store.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer archive.Close()
	if _, err := archive.SaveRun(context.Background(), rec.ID, rec.Scenario, rec.StartedAt, 3*time.Millisecond, rec.Result); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	h := NewHTTPHandler(HTTPOptions{State: state, Archive: archive})

	rr := get(t, h, "/archive/runs?scenario=depot&limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/archive/runs = %d: %s", rr.Code, rr.Body.String())
	}
	var runs []store.Run
	decodeBody(t, rr, &runs)
	if len(runs) != 1 || runs[0].ID != rec.ID {
		t.Fatalf("/archive/runs = %+v", runs)
	}

	rr = get(t, h, "/archive/runs/"+rec.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/archive/runs/{id} = %d: %s", rr.Code, rr.Body.String())
	}
	var view ResultView
	decodeBody(t, rr, &view)
	if view.Run.ElapsedMS != 3 || len(view.Demands) != len(rec.Result.Demands) {
		t.Fatalf("/archive/runs/{id} = %+v", view.Run)
	}

	if rr := get(t, h, "/archive/runs/missing", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing archived run = %d, want 404", rr.Code)
	}
	if rr := get(t, h, "/archive/runs?limit=-1", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative limit = %d, want 400", rr.Code)
	}
}
