package state

import (
	"sync"
	"time"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// DefaultHistorySize is the number of completed runs kept in memory.
const DefaultHistorySize = 16

// RunRecord is one completed simulation run.
type RunRecord struct {
	ID         string
	Scenario   string
	Generation uint64
	StartedAt  time.Time
	Elapsed    time.Duration

	// Source is the scenario the run replayed. Analyses of the run use it
	// rather than whatever scenario is loaded later.
	Source *model.Scenario

	// Result is shared between readers and must be treated as read-only.
	Result *core.Result
}

// RunSummary is the header of a RunRecord without its result.
type RunSummary struct {
	ID            string
	Scenario      string
	Generation    uint64
	StartedAt     time.Time
	Elapsed       time.Duration
	Events        int
	SpatialErrors int
	Demands       int
	FinalTime     float64
}

// Summary returns the record header.
func (r *RunRecord) Summary() RunSummary {
	s := RunSummary{
		ID:         r.ID,
		Scenario:   r.Scenario,
		Generation: r.Generation,
		StartedAt:  r.StartedAt,
		Elapsed:    r.Elapsed,
	}
	if r.Result != nil {
		s.Events = r.Result.EventsReplayed
		s.SpatialErrors = len(r.Result.SpatialErrors)
		s.Demands = len(r.Result.Demands)
		s.FinalTime = r.Result.FinalTime
	}
	return s
}

// RunHistory is a concurrency-safe, bounded store of run records. The
// oldest record is evicted once the limit is reached.
type RunHistory struct {
	mu    sync.RWMutex
	limit int
	order []string
	byID  map[string]*RunRecord
}

// NewRunHistory creates a history holding at most limit records.
func NewRunHistory(limit int) *RunHistory {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &RunHistory{limit: limit, byID: make(map[string]*RunRecord)}
}

// Add stores a copy of rec.
func (h *RunHistory) Add(rec *RunRecord) {
	if rec == nil || rec.ID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byID[rec.ID]; !ok {
		h.order = append(h.order, rec.ID)
	}
	cp := *rec
	h.byID[rec.ID] = &cp

	for len(h.order) > h.limit {
		delete(h.byID, h.order[0])
		h.order = h.order[1:]
	}
}

// Get returns a copy of the record with the given ID, or nil.
func (h *RunHistory) Get(id string) *RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.byID[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// List returns the summaries of every stored run, newest first.
func (h *RunHistory) List() []RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RunSummary, 0, len(h.order))
	for i := len(h.order) - 1; i >= 0; i-- {
		out = append(out, h.byID[h.order[i]].Summary())
	}
	return out
}

// Len reports the number of stored runs.
func (h *RunHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

// Clear drops every record.
func (h *RunHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = nil
	h.byID = make(map[string]*RunRecord)
}
