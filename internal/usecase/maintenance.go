package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"MetalPulse/internal/domain/models"
	drepo "MetalPulse/internal/domain/repository"
	"MetalPulse/pkg/archive"
	"MetalPulse/pkg/logger"
	"MetalPulse/pkg/util"
)

// backupPrefix names every backup set directory. The timestamp suffix sorts
// chronologically.
const backupPrefix = "metalpulse_backup_"

// MaintenanceConfig bounds retention, archives and backups.
type MaintenanceConfig struct {
	Retention         RetentionPolicy
	ArchiveDir        string
	ArchiveMaxAgeDays int
	BackupDir         string
	KeepBackups       int
}

// RetentionPolicy is the number of days kept per table class.
type RetentionPolicy struct {
	SeriesDays   int `json:"series_days"`
	AnalysisDays int `json:"analysis_days"`
}

func (p RetentionPolicy) validate() error {
	if p.SeriesDays < 1 || p.AnalysisDays < 1 {
		return fmt.Errorf("retention days must be positive, got series=%d analysis=%d", p.SeriesDays, p.AnalysisDays)
	}
	return nil
}

func (p RetentionPolicy) days(t models.ManagedTable) int {
	if t.Results {
		return p.AnalysisDays
	}
	return p.SeriesDays
}

// TableRotation reports one table of a retention pass.
type TableRotation struct {
	Table    string    `json:"table"`
	Cutoff   time.Time `json:"cutoff"`
	Archived uint64    `json:"archived"`
	Archive  string    `json:"archive,omitempty"`
	Deleted  uint64    `json:"deleted"`
	Error    string    `json:"error,omitempty"`
}

// RotationResult reports one retention pass.
type RotationResult struct {
	Tables          []TableRotation `json:"tables"`
	Optimized       []string        `json:"optimized"`
	ArchivesRemoved []string        `json:"archives_removed,omitempty"`
}

// Deleted is the row total scheduled for removal across tables.
func (r *RotationResult) Deleted() uint64 {
	var total uint64
	for _, t := range r.Tables {
		total += t.Deleted
	}
	return total
}

// BackupResult reports one backup set.
type BackupResult struct {
	Path    string            `json:"path"`
	Rows    map[string]uint64 `json:"rows"`
	Removed []string          `json:"removed,omitempty"`
}

// MaintenanceInfo is the storage report shown by the info command.
type MaintenanceInfo struct {
	Tables   []models.TableCount `json:"tables"`
	Archives archive.Summary     `json:"archives"`
	Backups  archive.Summary     `json:"backups"`
}

// MaintenanceUseCase archives and rotates old rows, backs up every managed
// table and reports storage usage.
type MaintenanceUseCase struct {
	cfg      MaintenanceConfig
	store    drepo.Maintainer
	archives *archive.Store
	metrics  drepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewMaintenanceUseCase(cfg MaintenanceConfig, store drepo.Maintainer, metrics drepo.Metrics, l *logger.Logger) *MaintenanceUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &MaintenanceUseCase{
		cfg:      cfg,
		store:    store,
		archives: archive.NewStore(cfg.ArchiveDir),
		metrics:  metrics,
		log:      l.Component("maintenance"),
		now:      time.Now,
	}
}

// Policy is the configured retention.
func (uc *MaintenanceUseCase) Policy() RetentionPolicy { return uc.cfg.Retention }

// Rotate archives then deletes rows older than the policy allows, table by
// table. A table whose archive fails keeps its rows and the pass moves on.
// Tables are optimized afterwards and expired archives removed. The result is
// returned even when some step failed.
func (uc *MaintenanceUseCase) Rotate(ctx context.Context, p RetentionPolicy) (*RotationResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	now := uc.now()
	res := &RotationResult{}
	var errs []error

	for _, t := range uc.store.Tables() {
		tr, err := uc.rotateTable(ctx, t, util.DaysAgo(now, p.days(t)))
		if err != nil {
			tr.Error = err.Error()
			errs = append(errs, err)
			uc.metrics.RecordError("maintenance")
			uc.log.Error("table rotation failed", logger.String("table", t.Name), logger.Error(err))
		}
		res.Tables = append(res.Tables, tr)
	}

	for _, t := range uc.store.Tables() {
		if err := uc.store.Optimize(ctx, t.Name); err != nil {
			errs = append(errs, err)
			uc.log.Warn("optimize failed", logger.String("table", t.Name), logger.Error(err))
			continue
		}
		res.Optimized = append(res.Optimized, t.Name)
	}

	if uc.cfg.ArchiveMaxAgeDays > 0 {
		removed, err := uc.archives.RemoveOlderThan(now.AddDate(0, 0, -uc.cfg.ArchiveMaxAgeDays))
		if err != nil {
			errs = append(errs, fmt.Errorf("archive cleanup: %w", err))
		}
		res.ArchivesRemoved = removed
	}

	deleted := make(map[string]uint64, len(res.Tables))
	for _, t := range res.Tables {
		deleted[t.Table] = t.Deleted
	}
	uc.log.Info("rotation complete",
		logger.Any("deleted", deleted),
		logger.Int("archives_removed", len(res.ArchivesRemoved)),
		logger.Int("failures", len(errs)))
	return res, errors.Join(errs...)
}

func (uc *MaintenanceUseCase) rotateTable(ctx context.Context, t models.ManagedTable, cutoff time.Time) (TableRotation, error) {
	tr := TableRotation{Table: t.Name, Cutoff: cutoff}
	name := fmt.Sprintf("%s_archive_%s", t.Name, util.FormatDate(cutoff))
	path, n, err := uc.archives.Write(name, func(w io.Writer) (uint64, error) {
		return uc.store.ExportRows(ctx, t.Name, cutoff, w)
	})
	if err != nil {
		return tr, fmt.Errorf("archive %s: %w", t.Name, err)
	}
	tr.Archive, tr.Archived = path, n
	if n == 0 {
		return tr, nil
	}

	deleted, err := uc.store.DeleteBefore(ctx, t.Name, cutoff)
	if err != nil {
		return tr, fmt.Errorf("delete from %s before %s: %w", t.Name, util.FormatDate(cutoff), err)
	}
	tr.Deleted = deleted
	return tr, nil
}

// Backup exports every managed table into a new timestamped set and prunes
// sets beyond KeepBackups.
func (uc *MaintenanceUseCase) Backup(ctx context.Context) (*BackupResult, error) {
	dir := filepath.Join(uc.cfg.BackupDir, backupPrefix+uc.now().UTC().Format("20060102T150405"))
	set := archive.NewStore(dir)
	res := &BackupResult{Path: dir, Rows: make(map[string]uint64)}

	for _, t := range uc.store.Tables() {
		_, n, err := set.Write(t.Name, func(w io.Writer) (uint64, error) {
			return uc.store.ExportRows(ctx, t.Name, time.Time{}, w)
		})
		if err != nil {
			uc.metrics.RecordError("backup")
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("backup %s: %w", t.Name, err)
		}
		res.Rows[t.Name] = n
	}

	removed, err := archive.KeepNewestSets(uc.cfg.BackupDir, backupPrefix, uc.cfg.KeepBackups)
	res.Removed = removed
	if err != nil {
		return res, fmt.Errorf("prune backups: %w", err)
	}
	uc.log.Info("backup created",
		logger.String("path", dir),
		logger.Any("rows", res.Rows),
		logger.Int("pruned", len(removed)))
	return res, nil
}

// Info returns row counts per table plus archive and backup usage.
func (uc *MaintenanceUseCase) Info(ctx context.Context) (*MaintenanceInfo, error) {
	counts, err := uc.store.TableCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("table counts: %w", err)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Table < counts[j].Table })

	archives, err := uc.archives.Summary()
	if err != nil {
		return nil, fmt.Errorf("archive summary: %w", err)
	}
	backups, err := archive.SummarizeSets(uc.cfg.BackupDir, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("backup summary: %w", err)
	}
	return &MaintenanceInfo{Tables: counts, Archives: archives, Backups: backups}, nil
}

// FormatInfo renders a storage report as plain text.
func FormatInfo(info *MaintenanceInfo) string {
	var b strings.Builder
	b.WriteString("table                 rows        oldest      newest\n")
	for _, c := range info.Tables {
		oldest, newest := "-", "-"
		if c.Rows > 0 {
			oldest, newest = util.FormatDate(c.Oldest), util.FormatDate(c.Newest)
		}
		fmt.Fprintf(&b, "%-20s  %10d  %-10s  %-10s\n", c.Table, c.Rows, oldest, newest)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "archives: %d files, %s in %s\n", info.Archives.Count, megabytes(info.Archives.Bytes), info.Archives.Dir)
	fmt.Fprintf(&b, "backups:  %d sets, %s in %s\n", info.Backups.Count, megabytes(info.Backups.Bytes), info.Backups.Dir)
	if info.Backups.Latest != "" {
		fmt.Fprintf(&b, "latest backup: %s\n", info.Backups.Latest)
	}
	return b.String()
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
