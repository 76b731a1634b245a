// Package scheduler runs the daily analysis, backups and data retention on
// cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MetalPulse/internal/domain/models"
	"MetalPulse/internal/usecase"
	"MetalPulse/pkg/logger"
)

// DailyRunner is the analysis entry point.
type DailyRunner interface {
	RunDaily(ctx context.Context) (*models.AnalysisRecord, error)
}

// Maintainer applies retention and takes backups.
type Maintainer interface {
	Rotate(ctx context.Context, p usecase.RetentionPolicy) (*usecase.RotationResult, error)
	Backup(ctx context.Context) (*usecase.BackupResult, error)
}

// Config holds cron expressions with a leading seconds field.
type Config struct {
	AnalysisSchedule    string
	MaintenanceSchedule string
	BackupSchedule      string
	Retention           usecase.RetentionPolicy
	// Timeout bounds one job run.
	Timeout time.Duration
}

// jobOrder fixes the order Entries reports jobs in.
var jobOrder = []string{"analysis", "backup", "maintenance"}

// Entry describes one scheduled job.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

// Scheduler owns the cron instance. Overlapping runs of the same job are
// skipped.
type Scheduler struct {
	cron  *cron.Cron
	daily DailyRunner
	maint Maintainer
	cfg   Config
	log   *logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
	running sync.WaitGroup
}

// New creates a scheduler. maint may be nil to disable retention and backups.
func New(daily DailyRunner, maint Maintainer, cfg Config, l *logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		daily:   daily,
		maint:   maint,
		cfg:     cfg,
		log:     l.Component("scheduler"),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.cfg.AnalysisSchedule != "" {
		if err := s.add("analysis", s.cfg.AnalysisSchedule, s.runAnalysis); err != nil {
			return err
		}
	}
	if s.maint != nil && s.cfg.BackupSchedule != "" {
		if err := s.add("backup", s.cfg.BackupSchedule, s.runBackup); err != nil {
			return err
		}
	}
	if s.maint != nil && s.cfg.MaintenanceSchedule != "" {
		if err := s.add("maintenance", s.cfg.MaintenanceSchedule, s.runMaintenance); err != nil {
			return err
		}
	}
	s.cron.Start()
	for _, e := range s.Entries() {
		s.log.Info("job scheduled",
			logger.String("job", e.Name),
			logger.String("spec", e.Spec),
			logger.String("next", e.Next.Format(time.RFC3339)))
	}
	return nil
}

func (s *Scheduler) add(name, spec string, fn func()) error {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.mu.Lock()
	s.entries[name] = id
	s.specs[name] = spec
	s.mu.Unlock()
	return nil
}

// Stop halts scheduling and waits for running jobs, including RunNow
// triggers, or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow triggers an immediate analysis run in the background. A run already
// in progress, scheduled or not, makes it a no-op.
func (s *Scheduler) RunNow() {
	s.log.Info("triggering immediate analysis run")
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.runAnalysis()
	}()
}

// Entries lists scheduled jobs with their next fire time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, name := range jobOrder {
		id, ok := s.entries[name]
		if !ok {
			continue
		}
		out = append(out, Entry{Name: name, Spec: s.specs[name], Next: s.cron.Entry(id).Next})
	}
	return out
}

func (s *Scheduler) runAnalysis() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	rec, err := s.daily.RunDaily(ctx)
	if errors.Is(err, usecase.ErrRunInProgress) {
		s.log.Warn("analysis skipped, previous run still in progress")
		return
	}
	if err != nil {
		s.log.Error("scheduled analysis failed", logger.Error(err))
		return
	}
	s.log.Info("scheduled analysis completed",
		logger.String("run_id", rec.RunID),
		logger.String("fragility_level", string(rec.Level())),
		logger.Int("fragility_score", rec.Score()),
		logger.Duration("duration_ms", time.Since(start)))
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	res, err := s.maint.Rotate(ctx, s.cfg.Retention)
	if err != nil {
		s.log.Error("scheduled maintenance failed", logger.Error(err))
	}
	if res != nil {
		s.log.Info("scheduled maintenance completed",
			logger.Int64("rows_deleted", int64(res.Deleted())),
			logger.Strings("optimized", res.Optimized))
	}
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	res, err := s.maint.Backup(ctx)
	if err != nil {
		s.log.Error("scheduled backup failed", logger.Error(err))
		return
	}
	s.log.Info("scheduled backup completed", logger.String("path", res.Path))
}
