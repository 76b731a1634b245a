package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MetalPulse/internal/domain/models"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func storedRows() *fakeMaintainer {
	return &fakeMaintainer{rows: map[string][]time.Time{
		"price_data":       {date(2020, 1, 2), date(2022, 3, 10), date(2024, 3, 8)},
		"macro_indicators": {date(2024, 1, 2)},
		"analysis_results": {date(2023, 12, 1), date(2024, 3, 8)},
	}}
}

func newMaintenance(t *testing.T, m *fakeMaintainer) (*MaintenanceUseCase, *fakeMetrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := newFakeMetrics()
	uc := NewMaintenanceUseCase(MaintenanceConfig{
		Retention:         RetentionPolicy{SeriesDays: 730, AnalysisDays: 90},
		ArchiveDir:        filepath.Join(dir, "archives"),
		ArchiveMaxAgeDays: 3650,
		BackupDir:         filepath.Join(dir, "backups"),
		KeepBackups:       2,
	}, m, metrics, nil)
	uc.now = func() time.Time { return testNow }
	return uc, metrics
}

func gunzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func TestMaintenance_RotateArchivesBeforeDeleting(t *testing.T) {
	m := storedRows()
	uc, _ := newMaintenance(t, m)

	res, err := uc.Rotate(context.Background(), uc.Policy())
	require.NoError(t, err)
	require.Len(t, res.Tables, 3)

	prices := res.Tables[0]
	assert.Equal(t, date(2022, 3, 11), prices.Cutoff)
	assert.Equal(t, uint64(2), prices.Archived)
	assert.Equal(t, uint64(2), prices.Deleted)
	assert.Equal(t, "price_data_archive_2022-03-11.csv.gz", filepath.Base(prices.Archive))
	assert.Equal(t, "date\n2020-01-02\n2022-03-10\n", gunzip(t, prices.Archive))
	assert.Equal(t, []time.Time{date(2024, 3, 8)}, m.rows["price_data"])

	macro := res.Tables[1]
	assert.Zero(t, macro.Archived)
	assert.Empty(t, macro.Archive)
	assert.NotContains(t, m.cutoffs, "macro_indicators")

	results := res.Tables[2]
	assert.Equal(t, date(2023, 12, 11), results.Cutoff)
	assert.Equal(t, uint64(1), results.Deleted)
	assert.Equal(t, date(2023, 12, 11), m.cutoffs["analysis_results"])

	assert.Equal(t, uint64(3), res.Deleted())
	assert.Equal(t, []string{"price_data", "macro_indicators", "analysis_results"}, res.Optimized)
}

func TestMaintenance_RotateKeepsRowsWhenArchiveFails(t *testing.T) {
	m := storedRows()
	m.exportErr = map[string]error{"price_data": errBoom}
	uc, metrics := newMaintenance(t, m)

	res, err := uc.Rotate(context.Background(), uc.Policy())
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "archive price_data")

	assert.NotEmpty(t, res.Tables[0].Error)
	assert.Len(t, m.rows["price_data"], 3)
	assert.NotContains(t, m.cutoffs, "price_data")
	assert.Equal(t, uint64(1), res.Tables[2].Deleted)
	assert.Len(t, res.Optimized, 3)
	assert.Equal(t, []string{"maintenance"}, metrics.errors)
}

func TestMaintenance_RotateRemovesExpiredArchives(t *testing.T) {
	uc, _ := newMaintenance(t, storedRows())
	require.NoError(t, os.MkdirAll(uc.cfg.ArchiveDir, 0o755))
	expired := filepath.Join(uc.cfg.ArchiveDir, "price_data_archive_2012-01-01.csv.gz")
	require.NoError(t, os.WriteFile(expired, []byte("x"), 0o644))
	old := date(2013, 1, 1)
	require.NoError(t, os.Chtimes(expired, old, old))

	res, err := uc.Rotate(context.Background(), uc.Policy())
	require.NoError(t, err)
	assert.Equal(t, []string{expired}, res.ArchivesRemoved)
	assert.NoFileExists(t, expired)
	assert.FileExists(t, res.Tables[0].Archive)
}

func TestMaintenance_RotateRejectsBadPolicy(t *testing.T) {
	uc, _ := newMaintenance(t, storedRows())
	_, err := uc.Rotate(context.Background(), RetentionPolicy{SeriesDays: 0, AnalysisDays: 90})
	assert.Error(t, err)
	_, err = uc.Rotate(context.Background(), RetentionPolicy{SeriesDays: 730})
	assert.Error(t, err)
}

func TestMaintenance_BackupKeepsNewestSets(t *testing.T) {
	m := storedRows()
	uc, _ := newMaintenance(t, m)

	var first *BackupResult
	for i := 0; i < 3; i++ {
		at := testNow.Add(time.Duration(i) * 24 * time.Hour)
		uc.now = func() time.Time { return at }
		res, err := uc.Backup(context.Background())
		require.NoError(t, err)
		if i == 0 {
			first = res
			assert.Equal(t, "metalpulse_backup_20240310T073000", filepath.Base(res.Path))
			assert.Equal(t, map[string]uint64{"price_data": 3, "macro_indicators": 1, "analysis_results": 2}, res.Rows)
			assert.Equal(t, "date\n2024-01-02\n", gunzip(t, filepath.Join(res.Path, "macro_indicators.csv.gz")))
		}
		if i == 2 {
			assert.Equal(t, []string{first.Path}, res.Removed)
		}
	}
	assert.NoDirExists(t, first.Path)

	info, err := uc.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, info.Backups.Count)
	assert.Equal(t, "metalpulse_backup_20240312T073000", info.Backups.Latest)
}

func TestMaintenance_BackupFailureLeavesNoPartialSet(t *testing.T) {
	m := storedRows()
	m.exportErr = map[string]error{"analysis_results": errBoom}
	uc, metrics := newMaintenance(t, m)

	_, err := uc.Backup(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"backup"}, metrics.errors)

	info, err := uc.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.Backups.Count)
}

func TestMaintenance_InfoSortedAndFormatted(t *testing.T) {
	m := storedRows()
	m.counts = []models.TableCount{
		{Table: "price_data", Rows: 2, Oldest: testStart, Newest: testNow},
		{Table: "analysis_results"},
	}
	uc, _ := newMaintenance(t, m)
	_, err := uc.Rotate(context.Background(), uc.Policy())
	require.NoError(t, err)

	info, err := uc.Info(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Tables, 2)
	assert.Equal(t, "analysis_results", info.Tables[0].Table)
	assert.Equal(t, 2, info.Archives.Count)
	assert.Positive(t, info.Archives.Bytes)
	assert.Zero(t, info.Backups.Count)

	out := FormatInfo(info)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "analysis_results")
	assert.Contains(t, lines[1], "-")
	assert.Contains(t, lines[2], "1971-01-01")
	assert.Contains(t, lines[2], "2024-03-10")
	assert.Contains(t, lines[4], "archives: 2 files")
	assert.Contains(t, lines[5], "backups:  0 sets")
}
