package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roomscan/roomscan/internal/database"
	"github.com/roomscan/roomscan/internal/database/repository"
	"github.com/roomscan/roomscan/internal/export"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()

	db, err := database.Open(filepath.Join(tmp, "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrationsWithDB(db, migrations))

	s, err := New(filepath.Join(tmp, "scans"), repository.NewScanRepo(db), nil)
	require.NoError(t, err)
	return s
}

func record(name string, scanDate time.Time) repository.ScanRecord {
	return repository.ScanRecord{
		ID:           uuid.New().String(),
		Name:         name,
		ScanDate:     scanDate,
		FloorArea:    16,
		WallArea:     40,
		Volume:       40,
		RoomWidth:    4,
		RoomLength:   4,
		RoomHeight:   2.5,
		WallCount:    4,
		DoorCount:    1,
		WindowCount:  1,
		QualityScore: 95,
	}
}

func TestStoreWritesPresentArtifactsOnly(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	id := uuid.New().String()
	paths, err := s.Store(ctx, id, export.Artifacts{
		Model: []byte("usdz-bytes"),
		Data:  []byte(`{"name":"Kitchen"}`),
	})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(s.ScanFolder(id), "room.usdz"), paths.Model)
	require.Equal(t, filepath.Join(s.ScanFolder(id), "room.json"), paths.Data)
	require.Empty(t, paths.Report, "absent artifact must not get a path")

	got, err := os.ReadFile(paths.Model)
	require.NoError(t, err)
	require.Equal(t, []byte("usdz-bytes"), got)

	_, err = os.Stat(filepath.Join(s.ScanFolder(id), "report.pdf"))
	require.True(t, os.IsNotExist(err))
}

func TestRecordAndGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	rec := record("Kitchen", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC))
	rec.Thumbnail = []byte{0x89, 0x50, 0x4e, 0x47}
	mp := "/scans/x/room.usdz"
	rec.ModelPath = &mp
	require.NoError(t, s.Record(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Kitchen", got.Name)
	require.Equal(t, rec.ScanDate, got.ScanDate)
	require.Equal(t, rec.Thumbnail, got.Thumbnail)
	require.NotNil(t, got.ModelPath)
	require.Equal(t, mp, *got.ModelPath)
	require.Nil(t, got.ReportPath)
	require.InDelta(t, 16, got.FloorArea, 1e-9)
	require.Equal(t, 95, got.QualityScore)
	require.False(t, got.CreatedAt.IsZero())
}

func TestGetMissingScan(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	_, err := s.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	old := record("Old Bedroom", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	mid := record("Office", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	newest := record("Kitchen", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	for _, r := range []repository.ScanRecord{old, mid, newest} {
		require.NoError(t, s.Record(ctx, r))
	}

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "Kitchen", recs[0].Name)
	require.Equal(t, "Office", recs[1].Name)
	require.Equal(t, "Old Bedroom", recs[2].Name)
}

func TestRenameAndNotes(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	rec := record("Untitled Scan", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.Record(ctx, rec))

	require.NoError(t, s.Rename(ctx, rec.ID, "Master Bedroom"))
	require.NoError(t, s.UpdateNotes(ctx, rec.ID, "needs a second pass near the window"))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Master Bedroom", got.Name)
	require.Equal(t, "needs a second pass near the window", got.Notes)

	require.ErrorIs(t, s.Rename(ctx, uuid.New().String(), "x"), repository.ErrNotFound)
	require.ErrorIs(t, s.UpdateNotes(ctx, uuid.New().String(), "x"), repository.ErrNotFound)
}

func TestDeleteRemovesRowAndFolder(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	rec := record("Garage", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.Record(ctx, rec))
	_, err := s.Store(ctx, rec.ID, export.Artifacts{Data: []byte("{}")})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, rec.ID))

	_, err = s.Get(ctx, rec.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = os.Stat(s.ScanFolder(rec.ID))
	require.True(t, os.IsNotExist(err), "artifact folder must be removed with the record")

	require.ErrorIs(t, s.Delete(ctx, rec.ID), repository.ErrNotFound)
}

func TestSearchByName(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	names := []string{"Kitchen", "Kitchen Annex", "Bedroom", "Bathroom"}
	for i, n := range names {
		require.NoError(t, s.Record(ctx, record(n, time.Date(2026, 4, 1+i, 0, 0, 0, 0, time.UTC))))
	}

	// Substring matches, case-insensitive.
	recs, err := s.SearchByName(ctx, "kitchen")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		require.Contains(t, r.Name, "Kitchen")
	}

	// Fuzzy: "bathroom" is 3 edits from "bedroom", inside the cutoff of
	// len(query)/2, but the exact match still ranks first.
	recs, err = s.SearchByName(ctx, "bedroom")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "Bedroom", recs[0].Name)
	require.Equal(t, "Bathroom", recs[1].Name)

	// No match at all.
	recs, err = s.SearchByName(ctx, "zz")
	require.NoError(t, err)
	require.Empty(t, recs)

	// Blank query returns everything, newest first.
	recs, err = s.SearchByName(ctx, "  ")
	require.NoError(t, err)
	require.Len(t, recs, 4)
	require.Equal(t, "Bathroom", recs[0].Name)
}

func TestSearchRanksSubstringBeforeFuzzy(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, record("Hall", time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.Record(ctx, record("Walk-in Hallway", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))))

	recs, err := s.SearchByName(ctx, "hallway")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "Walk-in Hallway", recs[0].Name, "exact substring must outrank an edit-distance match")
	require.Equal(t, "Hall", recs[1].Name)
}

func TestTotalStorageUsed(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	total, err := s.TotalStorageUsed()
	require.NoError(t, err)
	require.Zero(t, total)

	_, err = s.Store(ctx, "a", export.Artifacts{Model: make([]byte, 1000), Data: make([]byte, 24)})
	require.NoError(t, err)
	_, err = s.Store(ctx, "b", export.Artifacts{Report: make([]byte, 500)})
	require.NoError(t, err)

	total, err = s.TotalStorageUsed()
	require.NoError(t, err)
	require.Equal(t, int64(1524), total)
}

func TestFormatStorageSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatStorageSize(tc.in), "bytes=%d", tc.in)
	}
}
