// Package export coordinates model export, data serialization, report
// generation and persistence hand-off for finished scans. It owns the
// partial-failure policy: model and data failures are fatal for a room,
// report failures degrade to a notice.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomscan/roomscan/internal/database/repository"
	"github.com/roomscan/roomscan/internal/geo"
	"github.com/roomscan/roomscan/internal/measure"
	"github.com/roomscan/roomscan/internal/metrics"
	"github.com/roomscan/roomscan/internal/report"
)

// Toggles selects which artifacts an export produces. All formats default on.
type Toggles struct {
	Model  bool
	Data   bool
	Report bool
}

func DefaultToggles() Toggles { return Toggles{Model: true, Data: true, Report: true} }

// ModelExporter is the external 3D geometry exporter. It writes an opaque
// model payload to destPath.
type ModelExporter interface {
	Export(ctx context.Context, room geo.RoomSnapshot, destPath string) error
}

// ModelExporterFunc adapts a function to ModelExporter.
type ModelExporterFunc func(ctx context.Context, room geo.RoomSnapshot, destPath string) error

func (f ModelExporterFunc) Export(ctx context.Context, room geo.RoomSnapshot, destPath string) error {
	return f(ctx, room, destPath)
}

// Artifacts are the byte payloads handed to the persistence collaborator.
type Artifacts struct {
	Model     []byte
	Data      []byte
	Report    []byte
	Thumbnail []byte
}

// StoredPaths are the durable file paths the persistence collaborator
// returns; empty string means the artifact was absent.
type StoredPaths struct {
	Model  string
	Data   string
	Report string
}

// Recorder is the history persistence collaborator. Injected so orchestrator
// tests can run against doubles.
type Recorder interface {
	Store(ctx context.Context, scanID string, a Artifacts) (StoredPaths, error)
	Record(ctx context.Context, rec repository.ScanRecord) error
}

// Bundle is the transient artifact set produced for one room. A payload is
// only present when its toggle was on and the producing step succeeded.
type Bundle struct {
	Name      string
	Timestamp time.Time
	Model     []byte
	Data      []byte
	Report    []byte
	Thumbnail []byte
}

// Request describes one export invocation. Rooms holds the final snapshot of
// each captured room in capture order; Measurements, when set, is the
// session's cached summary for the last room.
type Request struct {
	Name         string
	Timestamp    time.Time
	Rooms        []geo.RoomSnapshot
	Measurements *measure.Measurements
	Toggles      Toggles
	Thumbnail    []byte
}

// RoomOutcome reports one room's export result. Err is fatal for that room
// only; Notice carries soft failures (report generation).
type RoomOutcome struct {
	Index    int
	Bundle   *Bundle
	RecordID string
	Paths    StoredPaths
	Notice   string
	Err      error
}

// Outcome is the per-room result list for one export invocation. ScratchDir
// is the caller's to clean up after hand-off; prior exports are never touched.
type Outcome struct {
	ScratchDir string
	Rooms      []RoomOutcome
}

// Failed reports whether every room failed fatally.
func (o Outcome) Failed() bool {
	for _, r := range o.Rooms {
		if r.Err == nil {
			return false
		}
	}
	return len(o.Rooms) > 0
}

// ReportGenerator produces report bytes for one room. Defaults to
// report.Generate; injected in tests.
type ReportGenerator func(name string, m measure.Measurements, ts time.Time) ([]byte, error)

// Orchestrator runs exports. One invocation is one background task; it never
// shares mutable session state and reads only the snapshots in the request.
type Orchestrator struct {
	Models  ModelExporter
	History Recorder
	Reports ReportGenerator
	// ScratchBase is where per-export scratch directories are created.
	// Defaults to the OS temp dir.
	ScratchBase string
	Log         *zap.Logger
	Metrics     *metrics.Metrics
}

// Export produces artifacts for every room in the request and persists each
// successful room's bundle. A fatal failure in one room aborts only that
// room. The returned error is ErrInvalidRoom for an empty request, or the
// first room error when every room failed.
func (o *Orchestrator) Export(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	log := o.logger()
	mts := o.metrics()

	if len(req.Rooms) == 0 {
		mts.ExportsTotal.WithLabelValues("invalid").Inc()
		return Outcome{}, ErrInvalidRoom
	}

	base := o.ScratchBase
	if base == "" {
		base = os.TempDir()
	}
	scratch := filepath.Join(base, "roomscan-export-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		mts.ExportsTotal.WithLabelValues("failed").Inc()
		return Outcome{}, &ExportError{Step: "persist", Err: fmt.Errorf("create scratch dir: %w", err)}
	}

	out := Outcome{ScratchDir: scratch}
	multi := len(req.Rooms) > 1

	for i, room := range req.Rooms {
		dir := scratch
		name := req.Name
		if multi {
			dir = filepath.Join(scratch, fmt.Sprintf("room-%d", i+1))
			name = fmt.Sprintf("%s - Room %d", req.Name, i+1)
		}

		res := o.exportRoom(ctx, req, i, room, dir, name)
		if res.Err == nil {
			o.persist(ctx, req, room, &res, name)
		}
		if res.Err != nil {
			log.Warn("room export failed",
				zap.Int("room", i+1),
				zap.Error(res.Err))
		}
		out.Rooms = append(out.Rooms, res)
	}

	mts.ExportDuration.Observe(time.Since(started).Seconds())
	if out.Failed() {
		mts.ExportsTotal.WithLabelValues("failed").Inc()
		return out, out.Rooms[0].Err
	}
	mts.ExportsTotal.WithLabelValues("ok").Inc()
	log.Info("export complete",
		zap.String("scratch", scratch),
		zap.Int("rooms", len(out.Rooms)))
	return out, nil
}

// exportRoom runs the toggle-gated artifact steps for a single room. Model
// and data failures are fatal for the room; the report degrades to a notice
// because it is derived convenience, not the capture record.
func (o *Orchestrator) exportRoom(ctx context.Context, req Request, i int, room geo.RoomSnapshot, dir, name string) RoomOutcome {
	res := RoomOutcome{Index: i}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Err = &ExportError{Step: "persist", Err: fmt.Errorf("create room dir: %w", err)}
		return res
	}

	b := &Bundle{Name: name, Timestamp: req.Timestamp}

	if req.Toggles.Model {
		if o.Models == nil {
			res.Err = &ExportError{Step: "model", Err: errors.New("no model exporter configured")}
			return res
		}
		dest := filepath.Join(dir, "room.usdz")
		if err := o.Models.Export(ctx, room, dest); err != nil {
			res.Err = &ExportError{Step: "model", Err: err}
			return res
		}
		data, err := os.ReadFile(dest)
		if err != nil {
			res.Err = &ExportError{Step: "model", Err: fmt.Errorf("read exported model: %w", err)}
			return res
		}
		b.Model = data
	}

	m := o.measurementsFor(req, i, room)

	if req.Toggles.Data {
		data, err := EncodeScanData(name, req.Timestamp, m, room)
		if err != nil {
			res.Err = &ExportError{Step: "data", Err: err}
			return res
		}
		if err := os.WriteFile(filepath.Join(dir, "room.json"), data, 0o644); err != nil {
			res.Err = &ExportError{Step: "data", Err: err}
			return res
		}
		b.Data = data
	}

	if req.Toggles.Report {
		generate := o.Reports
		if generate == nil {
			generate = report.Generate
		}
		rep, err := generate(name, m, req.Timestamp)
		if err == nil {
			err = os.WriteFile(filepath.Join(dir, "report.pdf"), rep, 0o644)
		}
		if err != nil {
			res.Notice = fmt.Sprintf("report generation failed: %v", err)
			o.metrics().ReportsSkipped.Inc()
		} else {
			b.Report = rep
		}
	}

	if i == 0 {
		b.Thumbnail = req.Thumbnail
	}

	res.Bundle = b
	return res
}

// persist hands the surviving payloads to history and records the scan. Runs
// only after the room's fatal steps all succeeded.
func (o *Orchestrator) persist(ctx context.Context, req Request, room geo.RoomSnapshot, res *RoomOutcome, name string) {
	if o.History == nil {
		res.Err = &ExportError{Step: "persist", Err: errors.New("no history store configured")}
		return
	}

	id := uuid.NewString()
	b := res.Bundle
	paths, err := o.History.Store(ctx, id, Artifacts{
		Model:     b.Model,
		Data:      b.Data,
		Report:    b.Report,
		Thumbnail: b.Thumbnail,
	})
	if err != nil {
		res.Err = &ExportError{Step: "persist", Err: err}
		return
	}

	m := o.measurementsFor(req, res.Index, room)
	rec := repository.ScanRecord{
		ID:           id,
		Name:         name,
		ScanDate:     req.Timestamp,
		ModelPath:    optionalPath(paths.Model),
		DataPath:     optionalPath(paths.Data),
		ReportPath:   optionalPath(paths.Report),
		Thumbnail:    b.Thumbnail,
		FloorArea:    m.FloorArea,
		WallArea:     m.WallArea,
		Volume:       m.Volume,
		RoomWidth:    m.Width,
		RoomLength:   m.Length,
		RoomHeight:   m.Height,
		WallCount:    m.WallCount,
		DoorCount:    m.DoorCount,
		WindowCount:  m.WindowCount,
		OpeningCount: m.OpeningCount,
		ObjectCount:  m.ObjectCount,
		QualityScore: m.Score,
	}
	if err := o.History.Record(ctx, rec); err != nil {
		res.Err = &ExportError{Step: "persist", Err: err}
		return
	}

	res.RecordID = id
	res.Paths = paths
}

// measurementsFor prefers the session's cached summary for the final room and
// computes fresh for everything else.
func (o *Orchestrator) measurementsFor(req Request, i int, room geo.RoomSnapshot) measure.Measurements {
	if req.Measurements != nil && i == len(req.Rooms)-1 {
		return *req.Measurements
	}
	return measure.Compute(room)
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Log != nil {
		return o.Log
	}
	return zap.NewNop()
}

func (o *Orchestrator) metrics() *metrics.Metrics {
	if o.Metrics != nil {
		return o.Metrics
	}
	return metrics.Nop()
}

func optionalPath(p string) *string {
	if p == "" {
		return nil
	}
	return &p
}
