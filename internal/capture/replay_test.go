package capture

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roomscan/roomscan/internal/geo"
)

func frameWithWalls(n int) Frame {
	var f Frame
	for i := 0; i < n; i++ {
		f.Snapshot.Walls = append(f.Snapshot.Walls, geo.Surface{
			Extent: geo.Vec3{X: 4, Y: 2.5, Z: 0.1},
		})
	}
	return f
}

func TestReplayEmitsFramesInOrder(t *testing.T) {
	t.Parallel()

	e := NewReplayEngine(Script{Frames: []Frame{
		frameWithWalls(1), frameWithWalls(2), frameWithWalls(3),
	}})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var walls []int
	for ev := range e.Events() {
		if ev.Err != nil {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
		walls = append(walls, len(ev.Snapshot.Walls))
	}
	if len(walls) != 3 || walls[0] != 1 || walls[1] != 2 || walls[2] != 3 {
		t.Fatalf("walls per frame = %v, want [1 2 3]", walls)
	}
}

func TestReplayTerminalErrorEndsStream(t *testing.T) {
	t.Parallel()

	e := NewReplayEngine(Script{Frames: []Frame{
		frameWithWalls(2),
		{Error: "tracking lost", Terminal: true},
		frameWithWalls(4), // never delivered
	}})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []Event
	for ev := range e.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2 (stream ends at terminal error)", len(got))
	}
	if got[1].Err == nil || !got[1].Terminal {
		t.Fatalf("second event = %+v, want terminal error", got[1])
	}
}

func TestReplayStopHaltsPlayback(t *testing.T) {
	t.Parallel()

	frames := []Frame{frameWithWalls(1)}
	for i := 0; i < 50; i++ {
		f := frameWithWalls(2)
		f.DelayMs = 50
		frames = append(frames, f)
	}
	e := NewReplayEngine(Script{Frames: frames})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-e.Events() // first frame arrived, playback is live
	e.Stop()

	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not halt after Stop")
	}
}

func TestReplayResumesAtNextRoom(t *testing.T) {
	t.Parallel()

	roomEnd := frameWithWalls(4)
	roomEnd.Terminal = true
	e := NewReplayEngine(Script{Frames: []Frame{
		frameWithWalls(2), roomEnd, // room 1
		frameWithWalls(3), // room 2
	}})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start (room 1): %v", err)
	}
	var walls []int
	for ev := range e.Events() {
		walls = append(walls, len(ev.Snapshot.Walls))
	}
	if len(walls) != 2 || walls[1] != 4 {
		t.Fatalf("room 1 walls per frame = %v, want [2 4]", walls)
	}
	if got := e.Remaining(); got != 1 {
		t.Fatalf("Remaining after room 1 = %d, want 1", got)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start (room 2): %v", err)
	}
	walls = nil
	for ev := range e.Events() {
		walls = append(walls, len(ev.Snapshot.Walls))
	}
	if len(walls) != 1 || walls[0] != 3 {
		t.Fatalf("room 2 walls per frame = %v, want [3]", walls)
	}
	if got := e.Remaining(); got != 0 {
		t.Fatalf("Remaining after room 2 = %d, want 0", got)
	}
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	s := Script{Frames: []Frame{frameWithWalls(3), {Error: "blur", DelayMs: 5}}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal script: %v", err)
	}
	path := filepath.Join(t.TempDir(), "capture.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	loaded, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if len(loaded.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(loaded.Frames))
	}
	if len(loaded.Frames[0].Snapshot.Walls) != 3 {
		t.Fatalf("frame 0 walls = %d, want 3", len(loaded.Frames[0].Snapshot.Walls))
	}
	if loaded.Frames[1].Error != "blur" {
		t.Fatalf("frame 1 error = %q", loaded.Frames[1].Error)
	}
}
