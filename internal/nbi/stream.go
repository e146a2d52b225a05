package nbi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/model"
	"github.com/signalsfoundry/logistics-simulator/timectrl"
)

// Stream message types.
const (
	MessageState = "state"
	MessageEnd   = "end"
)

// StreamMessage is the JSON envelope written to stream clients.
type StreamMessage struct {
	Type    string      `json:"type"`
	RunID   string      `json:"runId"`
	Payload *StateFrame `json:"payload,omitempty"`
	Frames  int         `json:"frames,omitempty"`
}

// StateFrame is one replayed simulation state.
type StateFrame struct {
	Frame     int                                    `json:"frame"`
	Time      float64                                `json:"time"`
	Locations map[model.ElementID]model.LocationID   `json:"locations"`
	Parents   map[model.ElementID]model.ContainerRef `json:"parents,omitempty"`
}

// StreamMetrics receives stream lifecycle updates.
type StreamMetrics interface {
	StreamOpened()
	StreamClosed()
	FrameSent()
}

// StateStream plays back the element states of a run over a WebSocket.
// Clients pick a run with ?run=<id> (default: latest) and may request
// ?mode=accelerated to receive frames without pacing.
type StateStream struct {
	state   *sim.ScenarioState
	metrics StreamMetrics
	log     logging.Logger

	// DayDuration is the wall-clock time one simulated day takes.
	DayDuration time.Duration

	upgrader websocket.Upgrader
}

// NewStateStream constructs a stream handler. A nil metrics disables
// stream metrics; a non-positive dayDuration plays every run accelerated.
func NewStateStream(state *sim.ScenarioState, metrics StreamMetrics, dayDuration time.Duration, log logging.Logger) *StateStream {
	if log == nil {
		log = logging.Noop()
	}
	return &StateStream{
		state:       state,
		metrics:     metrics,
		log:         log,
		DayDuration: dayDuration,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origins are enforced by the CORS layer in front of the mux.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *StateStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec, err := lookupRun(s.state, r.URL.Query().Get("run"))
	if err != nil {
		writeHTTPError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Warn(r.Context(), "stream upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Inbound messages are ignored; a read error means the client left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	mode := timectrl.RealTime
	if s.DayDuration <= 0 || r.URL.Query().Get("mode") == "accelerated" {
		mode = timectrl.Accelerated
	}
	sent, err := s.play(ctx, conn, rec, mode)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn(ctx, "stream aborted", logging.String("run_id", rec.ID), logging.Err(err))
		}
		return
	}

	_ = conn.WriteJSON(StreamMessage{Type: MessageEnd, RunID: rec.ID, Frames: sent})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.log.Debug(ctx, "stream finished", logging.String("run_id", rec.ID), logging.Int("frames", sent))
}

// play writes every state of rec in order. Listeners run on the player's
// goroutine, so conn has a single writer.
func (s *StateStream) play(ctx context.Context, conn *websocket.Conn, rec *sim.RunRecord, mode timectrl.Mode) (int, error) {
	states := rec.Result.States
	frames := make([]float64, len(states))
	for i, st := range states {
		frames[i] = st.Time
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeErr error
	sent := 0
	player := timectrl.NewPlayer(mode, s.DayDuration)
	player.AddListener(func(frame int, days float64) {
		if writeErr != nil {
			return
		}
		st := states[frame]
		msg := StreamMessage{
			Type:  MessageState,
			RunID: rec.ID,
			Payload: &StateFrame{
				Frame:     frame,
				Time:      days,
				Locations: st.Locations,
				Parents:   st.Parents,
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			writeErr = err
			cancel()
			return
		}
		sent++
		if s.metrics != nil {
			s.metrics.FrameSent()
		}
	})
	<-player.Start(ctx, frames)

	if writeErr != nil {
		return sent, writeErr
	}
	if sent < len(frames) {
		return sent, context.Canceled
	}
	return sent, nil
}

func lookupRun(state *sim.ScenarioState, runID string) (*sim.RunRecord, error) {
	if state == nil {
		return nil, ErrNotConfigured
	}
	if runID == "" {
		return state.Latest()
	}
	return state.Run(runID)
}
