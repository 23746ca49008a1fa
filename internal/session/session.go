// Package session owns the scan lifecycle. One Session is the single writer
// over all capture-run state: snapshot deliveries and user transitions both
// funnel through its mutex, so a snapshot racing a stop is ignored instead of
// corrupting review state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roomscan/roomscan/internal/capture"
	"github.com/roomscan/roomscan/internal/export"
	"github.com/roomscan/roomscan/internal/geo"
	"github.com/roomscan/roomscan/internal/measure"
	"github.com/roomscan/roomscan/internal/metrics"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateReviewing
	StateExporting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReviewing:
		return "reviewing"
	case StateExporting:
		return "exporting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const defaultName = "Untitled Scan"

// View is an immutable snapshot of the observable session state, handed to
// subscribers instead of sharing the session's own fields.
type View struct {
	State           State
	Name            string
	Progress        float64
	Status          string
	Notice          string
	Measurements    measure.Measurements
	HasMeasurements bool
	RoomIndex       int
	ExportReady     bool
}

// Session drives a capture run from start through review to export.
type Session struct {
	engine capture.Engine
	orch   *export.Orchestrator
	log    *zap.Logger
	mts    *metrics.Metrics

	mu        sync.Mutex
	gen       int // bumped on Start/Reset so stale export completions are dropped
	state     State
	name      string
	multiRoom bool
	toggles   export.Toggles

	completed []geo.RoomSnapshot
	current   *geo.RoomSnapshot
	meas      measure.Measurements
	hasMeas   bool
	progress  float64
	status    string
	notice    string
	ready     bool
	exporting bool
	drained   chan struct{}

	subs []chan View
}

// Option configures a Session at construction.
type Option func(*Session)

// WithMultiRoom enables the save-and-continue capture cycle.
func WithMultiRoom() Option { return func(s *Session) { s.multiRoom = true } }

// WithName sets the scan display name.
func WithName(name string) Option { return func(s *Session) { s.name = name } }

// WithToggles overrides the default all-on export formats.
func WithToggles(t export.Toggles) Option { return func(s *Session) { s.toggles = t } }

func WithLogger(log *zap.Logger) Option { return func(s *Session) { s.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Session) { s.mts = m } }

// New builds an idle session around a capture engine and an orchestrator.
func New(engine capture.Engine, orch *export.Orchestrator, opts ...Option) *Session {
	s := &Session{
		engine:  engine,
		orch:    orch,
		log:     zap.NewNop(),
		mts:     metrics.Nop(),
		name:    defaultName,
		toggles: export.DefaultToggles(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a capture run. Prior measurements, progress, status and the
// export-ready flag are cleared first.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("start: session is %s, want idle", s.state)
	}
	s.clearRoomStateLocked()
	s.notice = ""
	s.ready = false
	s.state = StateScanning
	s.gen++
	s.mts.SessionsStarted.Inc()
	s.notifyLocked()
	s.mu.Unlock()

	return s.startEngine(ctx)
}

// startEngine runs the engine and attaches a consumer to its event channel.
// Falls back to Reviewing on engine start failure so prior rooms survive.
func (s *Session) startEngine(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		s.mu.Lock()
		s.notice = fmt.Sprintf("scan session failed: %v", err)
		if len(s.completed) > 0 {
			s.state = StateReviewing
		} else {
			s.state = StateIdle
		}
		s.notifyLocked()
		s.mu.Unlock()
		return fmt.Errorf("start capture engine: %w", err)
	}

	ch := s.engine.Events()
	drained := make(chan struct{})
	s.mu.Lock()
	s.drained = drained
	s.mu.Unlock()
	go func() {
		defer close(drained)
		for ev := range ch {
			s.handleEvent(ev)
		}
	}()
	s.log.Info("capture started", zap.String("name", s.Name()))
	return nil
}

// CaptureDone reports when every event of the current capture run has been
// consumed. Closed immediately if no run has started. Callers that stop the
// session once the engine's stream ends should wait on this first, or
// trailing buffered snapshots are discarded as stale.
func (s *Session) CaptureDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.drained
}

// handleEvent is the single entry point for capture engine deliveries.
func (s *Session) handleEvent(ev capture.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Err != nil {
		if ev.Terminal {
			s.notice = fmt.Sprintf("scan session failed: %v", ev.Err)
			// Last-good measurements are kept, never silently discarded.
			if s.state == StateScanning {
				s.state = StateReviewing
			}
			s.log.Warn("capture engine terminal error", zap.Error(ev.Err))
		} else {
			s.notice = fmt.Sprintf("snapshot delivery error: %v", ev.Err)
			s.mts.DeliveryErrors.Inc()
			s.log.Debug("snapshot delivery error", zap.Error(ev.Err))
		}
		s.notifyLocked()
		return
	}

	// A snapshot that raced a stop or reset arrives here after the state
	// already moved on; drop it.
	if s.state != StateScanning {
		return
	}

	snap := ev.Snapshot.Clone()
	s.current = &snap
	s.meas = measure.Compute(snap)
	s.hasMeas = true
	s.progress = progressFor(s.meas)
	s.status = statusFor(s.meas)
	s.mts.SnapshotsProcessed.Inc()
	s.notifyLocked()
}

// Stop halts capture and moves to review. No-op outside Scanning.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.state = StateReviewing
	s.notifyLocked()
	s.mu.Unlock()

	s.engine.Stop()
	s.log.Info("capture stopped")
}

// SaveAndContinue records the just-finished room and restarts capture for the
// next one. Multi-room sessions only.
func (s *Session) SaveAndContinue(ctx context.Context) error {
	s.mu.Lock()
	if !s.multiRoom {
		s.mu.Unlock()
		return fmt.Errorf("save and continue: session is single-room")
	}
	if s.state != StateReviewing {
		s.mu.Unlock()
		return fmt.Errorf("save and continue: session is %s, want reviewing", s.state)
	}
	if s.current == nil {
		s.mu.Unlock()
		return export.ErrInvalidRoom
	}
	s.completed = append(s.completed, *s.current)
	s.clearRoomStateLocked()
	s.state = StateScanning
	s.notifyLocked()
	roomIndex := len(s.completed)
	s.mu.Unlock()

	s.log.Info("room saved, continuing capture", zap.Int("room_index", roomIndex))
	return s.startEngine(ctx)
}

// Finish arms the export-ready flag. The session stays in Reviewing; capture
// for this run is over.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return fmt.Errorf("finish: session is %s, want reviewing", s.state)
	}
	s.ready = true
	s.notifyLocked()
	return nil
}

// Export runs the orchestrator in the background and returns a channel that
// delivers the outcome. Invoking export with no completed capture is a
// contract violation reported as ErrInvalidRoom. At most one export is in
// flight per session; a failed export leaves the session retryable.
func (s *Session) Export(ctx context.Context) (<-chan export.Outcome, error) {
	s.mu.Lock()
	if s.exporting {
		s.mu.Unlock()
		return nil, fmt.Errorf("export already in flight")
	}
	if s.state != StateReviewing && s.state != StateFailed {
		s.mu.Unlock()
		return nil, fmt.Errorf("export: session is %s, want reviewing", s.state)
	}
	if s.current == nil {
		s.mu.Unlock()
		return nil, export.ErrInvalidRoom
	}

	// The request reads an immutable copy captured now; the orchestrator
	// never touches live session state.
	rooms := make([]geo.RoomSnapshot, 0, len(s.completed)+1)
	for _, r := range s.completed {
		rooms = append(rooms, r.Clone())
	}
	rooms = append(rooms, s.current.Clone())

	var measPtr *measure.Measurements
	if s.hasMeas {
		m := s.meas
		measPtr = &m
	}
	req := export.Request{
		Name:         s.name,
		Timestamp:    time.Now().UTC(),
		Rooms:        rooms,
		Measurements: measPtr,
		Toggles:      s.toggles,
	}

	s.state = StateExporting
	s.exporting = true
	gen := s.gen
	s.notifyLocked()
	s.mu.Unlock()

	done := make(chan export.Outcome, 1)
	go func() {
		out, err := s.orch.Export(ctx, req)

		s.mu.Lock()
		s.exporting = false
		if s.gen == gen {
			if err != nil {
				s.state = StateFailed
				s.notice = fmt.Sprintf("export failed: %v", err)
			} else {
				s.state = StateCompleted
				for _, r := range out.Rooms {
					if r.Notice != "" {
						s.notice = r.Notice
					}
				}
			}
			s.notifyLocked()
		}
		s.mu.Unlock()

		done <- out
	}()
	return done, nil
}

// Reset returns the session to defaults from any state, including the
// multi-room list. Calling it twice in a row is a no-op the second time.
func (s *Session) Reset() {
	s.mu.Lock()
	wasScanning := s.state == StateScanning
	s.gen++
	s.state = StateIdle
	s.completed = nil
	s.clearRoomStateLocked()
	s.notice = ""
	s.ready = false
	s.notifyLocked()
	s.mu.Unlock()

	if wasScanning {
		s.engine.Stop()
	}
}

// clearRoomStateLocked resets everything scoped to the room in progress.
func (s *Session) clearRoomStateLocked() {
	s.current = nil
	s.meas = measure.Measurements{}
	s.hasMeas = false
	s.progress = 0
	s.status = ""
}

// Subscribe returns a channel receiving a View after every observable
// change. Slow subscribers miss intermediate views rather than blocking the
// session.
func (s *Session) Subscribe() <-chan View {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan View, 16)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Session) notifyLocked() {
	v := s.viewLocked()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// View returns the current observable state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	return View{
		State:           s.state,
		Name:            s.name,
		Progress:        s.progress,
		Status:          s.status,
		Notice:          s.notice,
		Measurements:    s.meas,
		HasMeasurements: s.hasMeas,
		RoomIndex:       len(s.completed),
		ExportReady:     s.ready,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the scan display name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName updates the scan display name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		name = defaultName
	}
	s.name = name
	s.notifyLocked()
}

// SetToggles updates the export format selection. Takes effect on the next
// export invocation.
func (s *Session) SetToggles(t export.Toggles) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles = t
	s.notifyLocked()
}

// progressFor is a coverage heuristic: up to 0.4 for walls, 0.2 for a door,
// 0.1 for a window, up to 0.3 for objects.
func progressFor(m measure.Measurements) float64 {
	p := 0.1 * float64(min(m.WallCount, 4))
	if m.DoorCount > 0 {
		p += 0.2
	}
	if m.WindowCount > 0 {
		p += 0.1
	}
	p += 0.05 * float64(min(m.ObjectCount, 6))
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// statusFor derives the live guidance line by priority: wall coverage first,
// then door detection, then a generic keep-going message.
func statusFor(m measure.Measurements) string {
	if m.WallCount < 4 {
		return fmt.Sprintf("Scan more walls (%d/4)", m.WallCount)
	}
	if m.DoorCount == 0 {
		return "Looking for doors"
	}
	return "Good coverage - keep scanning"
}
