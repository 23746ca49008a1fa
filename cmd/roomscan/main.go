package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roomscan/roomscan/internal/capture"
	"github.com/roomscan/roomscan/internal/config"
	"github.com/roomscan/roomscan/internal/database"
	"github.com/roomscan/roomscan/internal/database/repository"
	"github.com/roomscan/roomscan/internal/export"
	"github.com/roomscan/roomscan/internal/geo"
	"github.com/roomscan/roomscan/internal/history"
	"github.com/roomscan/roomscan/internal/logging"
	"github.com/roomscan/roomscan/internal/measure"
	"github.com/roomscan/roomscan/internal/metrics"
	"github.com/roomscan/roomscan/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: roomscan <command> [flags]

commands:
  scan     capture a room from a replay script and export it
  list     list stored scans, newest first
  search   search stored scans by name
  show     show one stored scan
  rename   rename a stored scan
  notes    replace a stored scan's notes
  delete   delete a stored scan and its files
  storage  report total artifact storage used
`)
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Data.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Data.DatabasePath, "internal/database/migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	db, err := database.Open(cfg.Data.DatabasePath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	store, err := history.New(cfg.Data.ScansDir, repository.NewScanRepo(db), log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "scan":
		return runScan(ctx, cfg, log, store, args)
	case "list":
		return runList(ctx, store)
	case "search":
		return runSearch(ctx, store, args)
	case "show":
		return runShow(ctx, store, args)
	case "rename":
		return runRename(ctx, store, args)
	case "notes":
		return runNotes(ctx, store, args)
	case "delete":
		return runDelete(ctx, store, args)
	case "storage":
		return runStorage(store)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runScan(ctx context.Context, cfg config.Config, log *zap.Logger, store *history.Store, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	scriptPath := fs.String("capture", "", "path to a capture replay script (required)")
	name := fs.String("name", "", "scan display name")
	multi := fs.Bool("multi", cfg.Capture.MultiRoom, "multi-room session: each terminal frame ends one room")
	modelCmd := fs.String("model-cmd", cfg.Capture.ModelCmd, "external command converting room JSON on stdin to the usdz path in $1")
	fs.Parse(args)

	if *scriptPath == "" {
		return fmt.Errorf("scan: -capture is required")
	}
	script, err := capture.LoadScript(*scriptPath)
	if err != nil {
		return fmt.Errorf("load capture script: %w", err)
	}

	reg := prometheus.NewRegistry()
	mts := metrics.New(reg)

	toggles := export.Toggles{
		Model:  cfg.Export.Model && *modelCmd != "",
		Data:   cfg.Export.Data,
		Report: cfg.Export.Report,
	}

	orch := &export.Orchestrator{
		History: store,
		Log:     log,
		Metrics: mts,
	}
	if toggles.Model {
		orch.Models = commandModelExporter(*modelCmd)
	}

	opts := []session.Option{
		session.WithLogger(log),
		session.WithMetrics(mts),
		session.WithToggles(toggles),
	}
	if *name != "" {
		opts = append(opts, session.WithName(*name))
	}
	if *multi {
		opts = append(opts, session.WithMultiRoom())
	}

	engine := capture.NewReplayEngine(script)
	s := session.New(engine, orch, opts...)

	if err := s.Start(ctx); err != nil {
		return err
	}
	printLiveGuidance(s)

	if *multi {
		// Each room's script run ends on its own; save and rearm until the
		// script has no frames left.
		for engine.Remaining() > 0 {
			s.Stop()
			if err := s.SaveAndContinue(ctx); err != nil {
				return err
			}
			printLiveGuidance(s)
		}
	}
	s.Stop()
	if err := s.Finish(); err != nil {
		return err
	}

	v := s.View()
	if !v.HasMeasurements && v.Notice != "" {
		return fmt.Errorf("capture produced no usable room: %s", v.Notice)
	}

	done, err := s.Export(ctx)
	if err != nil {
		return err
	}
	out := <-done
	defer os.RemoveAll(out.ScratchDir)

	if s.State() == session.StateFailed {
		return fmt.Errorf("export failed: %s", s.View().Notice)
	}

	for _, room := range out.Rooms {
		if room.Err != nil {
			fmt.Printf("room %d failed: %v\n", room.Index+1, room.Err)
			continue
		}
		fmt.Printf("saved %s (%s)\n", room.Bundle.Name, room.RecordID)
		if room.Notice != "" {
			fmt.Printf("  note: %s\n", room.Notice)
		}
	}
	printQualitySummary(v.Measurements)
	return printStorage(store)
}

// printLiveGuidance mirrors the capture feed to the terminal until the
// current room's replay has been fully consumed.
func printLiveGuidance(s *session.Session) {
	views := s.Subscribe()
	for {
		select {
		case v := <-views:
			if v.State == session.StateScanning && v.Status != "" {
				fmt.Printf("\r[%3.0f%%] %-40s", v.Progress*100, v.Status)
			}
		case <-s.CaptureDone():
			// drain whatever guidance is already queued
			for {
				select {
				case v := <-views:
					if v.State == session.StateScanning && v.Status != "" {
						fmt.Printf("\r[%3.0f%%] %-40s", v.Progress*100, v.Status)
					}
				default:
					fmt.Println()
					return
				}
			}
		}
	}
}

func printQualitySummary(m measure.Measurements) {
	feedback, _ := measure.Feedback(m.Score)
	fmt.Printf("quality: %d/100 - %s\n", m.Score, feedback)
	for _, f := range measure.Validate(m) {
		fmt.Printf("  warning: %s\n", f)
	}
	fmt.Printf("room: %.2fm x %.2fm x %.2fm, floor %.1f sqm\n",
		m.Width, m.Length, m.Height, m.FloorArea)
}

// commandModelExporter shells out to an external converter: the room JSON is
// written to stdin and the destination path is passed as the only argument.
func commandModelExporter(command string) export.ModelExporter {
	return export.ModelExporterFunc(func(ctx context.Context, room geo.RoomSnapshot, destPath string) error {
		payload, err := export.EncodeScanData("", time.Time{}, measure.Compute(room), room)
		if err != nil {
			return err
		}
		cmd := exec.CommandContext(ctx, command, destPath)
		cmd.Stdin = strings.NewReader(string(payload))
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("model converter: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	})
}

func runList(ctx context.Context, store *history.Store) error {
	recs, err := store.List(ctx)
	if err != nil {
		return err
	}
	printRecords(recs)
	return nil
}

func runSearch(ctx context.Context, store *history.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("search: query required")
	}
	recs, err := store.SearchByName(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printRecords(recs)
	return nil
}

func runShow(ctx context.Context, store *history.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show: scan id required")
	}
	rec, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n  %s\n", rec.Name, rec.ScanDate.Local().Format("2 Jan 2006 15:04"))
	fmt.Printf("  %.2fm x %.2fm x %.2fm, floor %.1f sqm, quality %d/100\n",
		rec.RoomWidth, rec.RoomLength, rec.RoomHeight, rec.FloorArea, rec.QualityScore)
	fmt.Printf("  walls %d, doors %d, windows %d, openings %d, objects %d\n",
		rec.WallCount, rec.DoorCount, rec.WindowCount, rec.OpeningCount, rec.ObjectCount)
	for label, p := range map[string]*string{"model": rec.ModelPath, "data": rec.DataPath, "report": rec.ReportPath} {
		if p != nil {
			fmt.Printf("  %s: %s\n", label, *p)
		}
	}
	if rec.Notes != "" {
		fmt.Printf("  notes: %s\n", rec.Notes)
	}
	return nil
}

func runRename(ctx context.Context, store *history.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("rename: scan id and new name required")
	}
	return store.Rename(ctx, args[0], strings.Join(args[1:], " "))
}

func runNotes(ctx context.Context, store *history.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("notes: scan id and text required")
	}
	return store.UpdateNotes(ctx, args[0], strings.Join(args[1:], " "))
}

func runDelete(ctx context.Context, store *history.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete: scan id required")
	}
	return store.Delete(ctx, args[0])
}

func runStorage(store *history.Store) error {
	return printStorage(store)
}

func printStorage(store *history.Store) error {
	total, err := store.TotalStorageUsed()
	if err != nil {
		return err
	}
	fmt.Printf("storage used: %s\n", history.FormatStorageSize(total))
	return nil
}

func printRecords(recs []repository.ScanRecord) {
	if len(recs) == 0 {
		fmt.Println("no scans")
		return
	}
	for _, r := range recs {
		fmt.Printf("%s  %-28s %s  quality %d/100\n",
			r.ID, r.Name, r.ScanDate.Local().Format("2006-01-02 15:04"), r.QualityScore)
	}
}
