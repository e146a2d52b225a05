package nbi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/cors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/internal/store"
)

// RunArchive reads persisted runs.
type RunArchive interface {
	ListRuns(ctx context.Context, scenario string, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

// HTTPOptions configures the HTTP surface.
type HTTPOptions struct {
	State *sim.ScenarioState
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Stream serves /ws/states when set.
	Stream http.Handler
	// Archive serves /archive/runs when set.
	Archive        RunArchive
	AllowedOrigins []string
	Log            logging.Logger
}

// NewHTTPHandler builds the read-only HTTP surface: health, metrics, run
// status and results, the persisted run archive and the state stream, all
// behind CORS.
func NewHTTPHandler(opts HTTPOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.Noop()
	}
	h := &httpHandlers{state: opts.State, archive: opts.Archive, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("GET /runs", h.runs)
	mux.HandleFunc("GET /results", h.results)
	mux.HandleFunc("GET /repairs", h.repairs)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.Stream != nil {
		mux.Handle("GET /ws/states", opts.Stream)
	}
	if opts.Archive != nil {
		mux.HandleFunc("GET /archive/runs", h.archiveList)
		mux.HandleFunc("GET /archive/runs/{id}", h.archiveGet)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
	})
	log.Debug(context.Background(), "http surface configured",
		logging.Any("allowed_origins", origins),
		logging.Any("archive", opts.Archive != nil),
	)
	return c.Handler(mux)
}

type httpHandlers struct {
	state   *sim.ScenarioState
	archive RunArchive
	log     logging.Logger
}

func (h *httpHandlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandlers) status(w http.ResponseWriter, _ *http.Request) {
	if h.state == nil {
		writeHTTPError(w, ErrNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, NewStatusView(h.state.Snapshot()))
}

func (h *httpHandlers) runs(w http.ResponseWriter, _ *http.Request) {
	if h.state == nil {
		writeHTTPError(w, ErrNotConfigured)
		return
	}
	list := h.state.History().List()
	out := make([]RunInfo, 0, len(list))
	for _, r := range list {
		out = append(out, runInfo(r))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandlers) results(w http.ResponseWriter, r *http.Request) {
	rec, err := lookupRun(h.state, r.URL.Query().Get("run"))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewResultView(rec))
}

// repairs lists each crewed mission's repairable items for a run.
func (h *httpHandlers) repairs(w http.ResponseWriter, r *http.Request) {
	tables, err := h.state.RepairTables(r.Context(), r.URL.Query().Get("run"))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *httpHandlers) archiveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeHTTPError(w, ErrInvalidRequest)
			return
		}
		limit = n
	}
	runs, err := h.archive.ListRuns(r.Context(), q.Get("scenario"), limit)
	if err != nil {
		h.log.Warn(r.Context(), "archive list failed", logging.Err(err))
		writeHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *httpHandlers) archiveGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.archive.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	res, err := run.Result()
	if err != nil {
		h.log.Error(r.Context(), "archived run unreadable", logging.String("run_id", run.ID), logging.Err(err))
		writeHTTPError(w, err)
		return
	}
	rec := &sim.RunRecord{ID: run.ID, Scenario: run.Scenario, StartedAt: run.StartedAt, Result: res}
	view := NewResultView(rec)
	view.Run.ElapsedMS = run.ElapsedMS
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeHTTPError maps errors through their gRPC status onto an HTTP code.
func writeHTTPError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		err = errors.Join(ErrNotFound, err)
	}
	st, _ := status.FromError(ToStatusError(err))
	writeJSON(w, httpStatus(st.Code()), map[string]string{
		"error": st.Message(),
		"code":  st.Code().String(),
	})
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.Aborted, codes.AlreadyExists:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
