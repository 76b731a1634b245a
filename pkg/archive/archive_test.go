package archive

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRows(rows ...string) FillFunc {
	return func(w io.Writer) (uint64, error) {
		var n uint64
		for _, r := range rows {
			if _, err := io.WriteString(w, r+"\n"); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}
}

func readGzip(t *testing.T, path string) string {
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

func TestWriteCompressesAndNeverOverwrites(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "archives"))

	first, n, err := s.Write("price_data_archive_2022-03-11", writeRows("date,gold_price", "2020-01-02,1520.5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, "price_data_archive_2022-03-11.csv.gz", filepath.Base(first))
	assert.Equal(t, "date,gold_price\n2020-01-02,1520.5\n", readGzip(t, first))

	second, _, err := s.Write("price_data_archive_2022-03-11", writeRows("x"))
	require.NoError(t, err)
	assert.Equal(t, "price_data_archive_2022-03-11-2.csv.gz", filepath.Base(second))
	assert.Equal(t, "date,gold_price\n2020-01-02,1520.5\n", readGzip(t, first))
}

func TestWriteDropsEmptyExport(t *testing.T) {
	s := NewStore(t.TempDir())

	path, n, err := s.Write("macro_indicators_archive_2022-03-11", writeRows())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, n)

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Zero(t, sum.Count)
}

func TestWriteRemovesFileOnFillError(t *testing.T) {
	s := NewStore(t.TempDir())

	_, _, err := s.Write("broken", func(w io.Writer) (uint64, error) {
		_, _ = io.WriteString(w, "header\n")
		return 0, errors.New("connection reset")
	})
	require.ErrorContains(t, err, "connection reset")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSummaryAndRemoveOlderThan(t *testing.T) {
	s := NewStore(t.TempDir())
	old, _, err := s.Write("a_archive_2010-01-01", writeRows("1"))
	require.NoError(t, err)
	fresh, _, err := s.Write("b_archive_2024-01-01", writeRows("1", "2"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("skip"), 0o644))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.AddDate(-11, 0, 0), now.AddDate(-11, 0, 0)))

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Positive(t, sum.Bytes)
	assert.Equal(t, filepath.Base(fresh), sum.Latest)

	removed, err := s.RemoveOlderThan(now.AddDate(-10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{old}, removed)

	sum, err = s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
}

func TestSummaryMissingDirIsEmpty(t *testing.T) {
	sum, err := NewStore(filepath.Join(t.TempDir(), "absent")).Summary()
	require.NoError(t, err)
	assert.Zero(t, sum.Count)
	assert.Zero(t, sum.Bytes)
}

func TestKeepNewestSets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"metalpulse_backup_20240101T020000",
		"metalpulse_backup_20240108T020000",
		"metalpulse_backup_20240115T020000",
		"unrelated",
	} {
		_, _, err := NewStore(filepath.Join(dir, name)).Write("price_data", writeRows("1"))
		require.NoError(t, err)
	}

	removed, err := KeepNewestSets(dir, "metalpulse_backup_", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "metalpulse_backup_20240101T020000")}, removed)

	sum, err := SummarizeSets(dir, "metalpulse_backup_")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Positive(t, sum.Bytes)
	assert.DirExists(t, filepath.Join(dir, "unrelated"))

	removed, err = KeepNewestSets(dir, "metalpulse_backup_", 5)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
