package nbi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

type countingStreamMetrics struct {
	opened, closed, frames atomic.Int32
}

func (m *countingStreamMetrics) StreamOpened() { m.opened.Add(1) }
func (m *countingStreamMetrics) StreamClosed() { m.closed.Add(1) }
func (m *countingStreamMetrics) FrameSent()    { m.frames.Add(1) }

func newRunState(t *testing.T) (*sim.ScenarioState, *sim.RunRecord) {
	t.Helper()
	state := sim.NewScenarioState(kb.NewKnowledgeBase(), logging.Noop())
	ctx := context.Background()
	if _, err := state.LoadScenario(ctx, strings.NewReader(depotDocument(t))); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	rec, err := state.RunSimulation(ctx, sim.RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation: %v", err)
	}
	return state, rec
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + query
}

func readStream(t *testing.T, conn *websocket.Conn) ([]StateFrame, StreamMessage) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frames []StateFrame
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		switch msg.Type {
		case MessageState:
			frames = append(frames, *msg.Payload)
		case MessageEnd:
			return frames, msg
		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}
}

func TestStateStreamPlaysLatestRun(t *testing.T) {
	state, rec := newRunState(t)
	metrics := &countingStreamMetrics{}
	srv := httptest.NewServer(NewStateStream(state, metrics, 0, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	frames, end := readStream(t, conn)
	want := len(rec.Result.States)
	if want == 0 {
		t.Fatalf("fixture produced no states")
	}
	if len(frames) != want || end.Frames != want {
		t.Fatalf("frames = %d (end reports %d), want %d", len(frames), end.Frames, want)
	}
	if end.RunID != rec.ID {
		t.Fatalf("end.RunID = %q, want %q", end.RunID, rec.ID)
	}
	for i, f := range frames {
		if f.Frame != i || f.Time != rec.Result.States[i].Time {
			t.Fatalf("frame %d = {%d, %v}, want {%d, %v}", i, f.Frame, f.Time, i, rec.Result.States[i].Time)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for metrics.closed.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if metrics.opened.Load() != 1 || metrics.closed.Load() != 1 {
		t.Fatalf("opened/closed = %d/%d, want 1/1", metrics.opened.Load(), metrics.closed.Load())
	}
	if int(metrics.frames.Load()) != want {
		t.Fatalf("frames metric = %d, want %d", metrics.frames.Load(), want)
	}
}

func TestStateStreamPacedPlayback(t *testing.T) {
	state, rec := newRunState(t)
	srv := httptest.NewServer(NewStateStream(state, nil, time.Millisecond, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?run="+rec.ID), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	frames, _ := readStream(t, conn)
	for i := 1; i < len(frames); i++ {
		if frames[i].Time < frames[i-1].Time {
			t.Fatalf("frames out of order at %d: %v < %v", i, frames[i].Time, frames[i-1].Time)
		}
	}
}

func TestStateStreamUnknownRun(t *testing.T) {
	state, _ := newRunState(t)
	srv := httptest.NewServer(NewStateStream(state, nil, 0, nil))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?run=missing"), nil)
	if err == nil {
		t.Fatalf("Dial succeeded for an unknown run")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %v, want 404", resp)
	}
}
