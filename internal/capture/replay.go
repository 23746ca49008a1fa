package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/roomscan/roomscan/internal/geo"
)

// Frame is one recorded delivery in a capture script.
type Frame struct {
	// DelayMs is the pause before this frame is emitted.
	DelayMs int `json:"delay_ms"`
	// Error, when set, is delivered instead of the snapshot.
	Error string `json:"error,omitempty"`
	// Terminal ends the current run after this frame. On an error frame it
	// also marks the delivered error as unrecoverable. Scripts use terminal
	// snapshot frames to delimit rooms in multi-room captures.
	Terminal bool             `json:"terminal,omitempty"`
	Snapshot geo.RoomSnapshot `json:"snapshot"`
}

// Script is a recorded capture run, loadable from JSON.
type Script struct {
	Frames []Frame `json:"frames"`
}

// LoadScript reads a capture script from a JSON file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read capture script: %w", err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse capture script: %w", err)
	}
	return s, nil
}

// ReplayEngine plays back a recorded script as if it were a live capture.
// It satisfies Engine and is restartable: each run resumes after the last
// frame the previous run consumed, so one script can feed every room of a
// multi-room session.
type ReplayEngine struct {
	script Script

	mu     sync.Mutex
	pos    int // index of the next frame to play
	events chan Event
	quit   chan struct{}
	done   chan struct{}
}

func NewReplayEngine(script Script) *ReplayEngine {
	return &ReplayEngine{script: script}
}

// Start begins emitting the script's frames on a fresh events channel. A
// previous run must have finished or been stopped first.
func (e *ReplayEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events != nil {
		select {
		case <-e.done:
		default:
			return fmt.Errorf("replay engine already running")
		}
	}

	// Small buffer keeps the producer ahead without growing unbounded.
	e.events = make(chan Event, 8)
	e.quit = make(chan struct{})
	e.done = make(chan struct{})

	go e.run(ctx, e.pos, e.events, e.quit, e.done)
	return nil
}

func (e *ReplayEngine) run(ctx context.Context, start int, events chan Event, quit, done chan struct{}) {
	next := start
	defer func() {
		e.mu.Lock()
		e.pos = next
		e.mu.Unlock()
		close(events)
		close(done)
	}()

	for _, f := range e.script.Frames[start:] {
		if f.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(f.DelayMs) * time.Millisecond):
			case <-quit:
				return
			case <-ctx.Done():
				return
			}
		}

		var ev Event
		if f.Error != "" {
			ev = Event{Err: fmt.Errorf("%s", f.Error), Terminal: f.Terminal}
		} else {
			snap := f.Snapshot.Clone()
			ev = Event{Snapshot: &snap}
		}

		select {
		case events <- ev:
		case <-quit:
			return
		case <-ctx.Done():
			return
		}
		next++

		if f.Terminal {
			return
		}
	}
}

// Stop halts playback. Safe to call more than once and before Start.
func (e *ReplayEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quit == nil {
		return
	}
	select {
	case <-e.quit:
	default:
		close(e.quit)
	}
}

// Events returns the current run's delivery channel.
func (e *ReplayEngine) Events() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

// Done reports when the current run has finished emitting.
func (e *ReplayEngine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Remaining returns the number of script frames not yet played. Only settled
// once the current run is done.
func (e *ReplayEngine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.script.Frames) - e.pos
}
