// Package history is the persistence collaborator for completed scans: it
// owns the durable per-scan artifact folders and the scan record table.
package history

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/roomscan/roomscan/internal/database/repository"
	"github.com/roomscan/roomscan/internal/export"
)

const (
	modelFileName  = "room.usdz"
	dataFileName   = "room.json"
	reportFileName = "report.pdf"
)

// Store keeps one folder per scan under Dir and a row per scan in the repo.
type Store struct {
	dir   string
	scans *repository.ScanRepo
	log   *zap.Logger
}

// New creates the scans directory if needed.
func New(dir string, scans *repository.ScanRepo, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scans dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, scans: scans, log: log}, nil
}

// Dir returns the scans directory root.
func (s *Store) Dir() string { return s.dir }

// ScanFolder returns the artifact folder for one scan id.
func (s *Store) ScanFolder(scanID string) string {
	return filepath.Join(s.dir, scanID)
}

// Store writes the present payloads into the scan's folder and returns their
// durable paths. Implements export.Recorder.
func (s *Store) Store(ctx context.Context, scanID string, a export.Artifacts) (export.StoredPaths, error) {
	folder := s.ScanFolder(scanID)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return export.StoredPaths{}, fmt.Errorf("create scan folder: %w", err)
	}

	var paths export.StoredPaths
	write := func(name string, data []byte) (string, error) {
		if data == nil {
			return "", nil
		}
		p := filepath.Join(folder, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		return p, nil
	}

	var err error
	if paths.Model, err = write(modelFileName, a.Model); err != nil {
		return export.StoredPaths{}, err
	}
	if paths.Data, err = write(dataFileName, a.Data); err != nil {
		return export.StoredPaths{}, err
	}
	if paths.Report, err = write(reportFileName, a.Report); err != nil {
		return export.StoredPaths{}, err
	}

	s.log.Debug("stored scan artifacts",
		zap.String("scan_id", scanID),
		zap.String("folder", folder))
	return paths, nil
}

// Record persists the scan record. Implements export.Recorder.
func (s *Store) Record(ctx context.Context, rec repository.ScanRecord) error {
	return s.scans.Insert(ctx, rec)
}

// List returns all scan records, newest first.
func (s *Store) List(ctx context.Context) ([]repository.ScanRecord, error) {
	return s.scans.List(ctx)
}

// Get returns one scan record.
func (s *Store) Get(ctx context.Context, id string) (repository.ScanRecord, error) {
	return s.scans.Get(ctx, id)
}

// Rename updates a scan's display name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	return s.scans.Rename(ctx, id, name)
}

// UpdateNotes replaces a scan's free-text notes.
func (s *Store) UpdateNotes(ctx context.Context, id, notes string) error {
	return s.scans.UpdateNotes(ctx, id, notes)
}

// Delete removes the record and the scan's artifact folder.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.scans.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.ScanFolder(id)); err != nil {
		return fmt.Errorf("remove scan folder: %w", err)
	}
	return nil
}

// SearchByName returns records whose names match the query, best match
// first. Substring matches rank ahead of fuzzy ones; fuzzy matches are kept
// while the edit distance stays under half the query length.
func (s *Store) SearchByName(ctx context.Context, query string) ([]repository.ScanRecord, error) {
	recs, err := s.scans.List(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return recs, nil
	}

	type ranked struct {
		rec  repository.ScanRecord
		dist int
	}
	var out []ranked
	for _, r := range recs {
		name := strings.ToLower(r.Name)
		switch {
		case strings.Contains(name, q):
			out = append(out, ranked{rec: r, dist: 0})
		default:
			d := levenshtein.ComputeDistance(q, name)
			if d <= len(q)/2 {
				out = append(out, ranked{rec: r, dist: d})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })

	res := make([]repository.ScanRecord, 0, len(out))
	for _, r := range out {
		res = append(res, r.rec)
	}
	return res, nil
}

// TotalStorageUsed sums the bytes of every stored artifact.
func (s *Store) TotalStorageUsed() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk scans dir: %w", err)
	}
	return total, nil
}

// FormatStorageSize renders a byte count for display.
func FormatStorageSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
