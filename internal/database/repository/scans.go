package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a scan id has no row.
var ErrNotFound = errors.New("scan not found")

// ScanRepo handles scan records.
type ScanRepo struct {
	db *sql.DB
}

func NewScanRepo(db *sql.DB) *ScanRepo { return &ScanRepo{db: db} }

const scanColumns = `id, name, scan_date, model_path, data_path, report_path, thumbnail,
 floor_area, wall_area, volume, room_width, room_length, room_height,
 wall_count, door_count, window_count, opening_count, object_count, quality_score,
 notes, created_at, updated_at`

func (r *ScanRepo) Insert(ctx context.Context, s ScanRecord) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO scans(
	 id, name, scan_date, model_path, data_path, report_path, thumbnail,
	 floor_area, wall_area, volume, room_width, room_length, room_height,
	 wall_count, door_count, window_count, opening_count, object_count, quality_score,
	 notes, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		s.ID, s.Name, s.ScanDate.UTC().Format(time.RFC3339), s.ModelPath, s.DataPath, s.ReportPath, s.Thumbnail,
		s.FloorArea, s.WallArea, s.Volume, s.RoomWidth, s.RoomLength, s.RoomHeight,
		s.WallCount, s.DoorCount, s.WindowCount, s.OpeningCount, s.ObjectCount, s.QualityScore,
		s.Notes)
	return err
}

func (r *ScanRepo) Rename(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE scans SET name = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *ScanRepo) UpdateNotes(ctx context.Context, id, notes string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE scans SET notes = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, notes, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *ScanRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *ScanRepo) Get(ctx context.Context, id string) (ScanRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	s, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanRecord{}, ErrNotFound
	}
	return s, err
}

// List returns all scans, newest first.
func (r *ScanRepo) List(ctx context.Context) ([]ScanRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scanColumns+` FROM scans ORDER BY scan_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (ScanRecord, error) {
	var s ScanRecord
	var scanDate, createdAt, updatedAt string
	err := row.Scan(
		&s.ID, &s.Name, &scanDate, &s.ModelPath, &s.DataPath, &s.ReportPath, &s.Thumbnail,
		&s.FloorArea, &s.WallArea, &s.Volume, &s.RoomWidth, &s.RoomLength, &s.RoomHeight,
		&s.WallCount, &s.DoorCount, &s.WindowCount, &s.OpeningCount, &s.ObjectCount, &s.QualityScore,
		&s.Notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return ScanRecord{}, err
	}
	if t, err := time.Parse(time.RFC3339, scanDate); err == nil {
		s.ScanDate = t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		s.CreatedAt = t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		s.UpdatedAt = t
	}
	return s, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
