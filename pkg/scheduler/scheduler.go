// Package scheduler drives the background jobs: periodic attendance cache
// refreshes, daily device backups, and backup retention cleanup. Jobs are
// staggered across the fleet so that no two devices are scanned at the
// same moment and never overlap themselves.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// Refresher refreshes the attendance snapshot for one device.
type Refresher interface {
	Refresh(ctx context.Context, key string) (int, error)
}

// BackupRunner captures one device into object storage.
type BackupRunner interface {
	Run(ctx context.Context, key string, includeAttendance bool) (string, error)
}

// Cleaner removes stored backups older than the retention window.
type Cleaner interface {
	CleanupOldBackups(ctx context.Context, retentionDays int) (int, error)
}

// Notifier receives job outcome messages. May be a no-op.
type Notifier interface {
	NotifySuccess(ctx context.Context, msg string)
	NotifyError(ctx context.Context, msg string)
}

// JobRecorder observes refresh and backup outcomes, typically backed by
// Prometheus counters. Calls arrive from job goroutines.
type JobRecorder interface {
	ObserveRefresh(device string, err error)
	ObserveBackup(device string, err error)
}

// Config carries the scheduling knobs from Settings.
type Config struct {
	RefreshInterval           time.Duration // cache refresh period, per device
	BackupHourUTC             int
	BackupMinuteUTC           int
	RetentionDays             int
	IncludeAttendanceInBackup bool
}

// Job describes one registered job for status reporting.
type Job struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

// Scheduler owns the cron engine and the job registry. Borrow-only over
// its collaborators; it never outlives the cache or the pool.
type Scheduler struct {
	cfg      Config
	keys     []string
	cache    Refresher
	backup   BackupRunner
	cleaner  Cleaner
	notifier Notifier
	recorder JobRecorder

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running bool
}

// New builds a stopped scheduler over the given device keys (fleet file
// order; the index drives staggering). backup and cleaner may be nil when
// object storage is not configured; their jobs are then not registered.
func New(cfg Config, keys []string, cache Refresher, backup BackupRunner, cleaner Cleaner, notifier Notifier) *Scheduler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Scheduler{
		cfg:      cfg,
		keys:     keys,
		cache:    cache,
		backup:   backup,
		cleaner:  cleaner,
		notifier: notifier,
		recorder: nopRecorder{},
		entries:  make(map[string]cron.EntryID),
	}
}

// SetRecorder points job outcome counting at r. Call before Start.
func (s *Scheduler) SetRecorder(r JobRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r != nil {
		s.recorder = r
	}
}

func (s *Scheduler) jobRecorder() JobRecorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder
}

// Start registers all jobs and starts the engine. Idempotent: calling
// Start on a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		logger.Debug("Scheduler already running")
		return nil
	}

	log := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	s.entries = make(map[string]cron.EntryID)

	base := time.Now()
	for i, key := range s.keys {
		key := key
		id := s.cron.Schedule(
			refreshSchedule(base, i, s.cfg.RefreshInterval),
			cron.FuncJob(func() { s.runRefresh(key) }),
		)
		s.entries["cache_refresh_"+key] = id
	}

	if s.backup != nil {
		for i, key := range s.keys {
			key := key
			spec := backupSpec(s.cfg.BackupHourUTC, s.cfg.BackupMinuteUTC, i)
			id, err := s.cron.AddFunc(spec, func() { s.runBackup(key) })
			if err != nil {
				return err
			}
			s.entries["daily_backup_"+key] = id
		}
	}
	if s.cleaner != nil {
		id, err := s.cron.AddFunc(cleanupSpec(s.cfg.BackupHourUTC), s.runCleanup)
		if err != nil {
			return err
		}
		s.entries["cleanup_old_backups"] = id
	}

	s.cron.Start()
	s.running = true
	logger.Info("Scheduler started",
		"devices", len(s.keys),
		"refresh_interval", s.cfg.RefreshInterval,
		"backup_jobs", s.backup != nil)
	return nil
}

// Stop refuses new fires and returns without waiting; in-flight jobs run
// to completion on their own goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	logger.Info("Scheduler stopped")
}

// Running reports whether the engine accepts fires.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs lists the registered jobs with their next fire times.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	out := make([]Job, 0, len(s.entries))
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		out = append(out, Job{Name: name, Schedule: describe(name), NextRun: e.Next})
	}
	return out
}

func describe(name string) string {
	switch {
	case len(name) > 14 && name[:14] == "cache_refresh_":
		return "interval"
	case name == "cleanup_old_backups":
		return "daily"
	default:
		return "daily"
	}
}

func (s *Scheduler) runRefresh(key string) {
	run := uuid.NewString()[:8]
	ctx := context.Background()
	start := time.Now()

	count, err := s.cache.Refresh(ctx, key)
	s.jobRecorder().ObserveRefresh(key, err)
	if err != nil {
		logger.Error("Scheduled refresh failed",
			"device", key, "run", run, "error", err)
		s.notifier.NotifyError(ctx, "Attendance refresh failed for "+key+": "+err.Error())
		return
	}
	logger.Info("Scheduled refresh done",
		"device", key, "run", run, "records", count,
		"duration_ms", logger.Duration(start))
}

func (s *Scheduler) runBackup(key string) {
	run := uuid.NewString()[:8]
	ctx := context.Background()
	start := time.Now()

	location, err := s.backup.Run(ctx, key, s.cfg.IncludeAttendanceInBackup)
	s.jobRecorder().ObserveBackup(key, err)
	if err != nil {
		logger.Error("Scheduled backup failed",
			"device", key, "run", run, "error", err)
		s.notifier.NotifyError(ctx, "Backup failed for "+key+": "+err.Error())
		return
	}
	logger.Info("Scheduled backup done",
		"device", key, "run", run, "location", location,
		"duration_ms", logger.Duration(start))
	s.notifier.NotifySuccess(ctx, "Backup completed for "+key+" at "+location)
}

func (s *Scheduler) runCleanup() {
	run := uuid.NewString()[:8]
	ctx := context.Background()

	deleted, err := s.cleaner.CleanupOldBackups(ctx, s.cfg.RetentionDays)
	if err != nil {
		logger.Error("Backup cleanup failed", "run", run, "error", err)
		s.notifier.NotifyError(ctx, "Backup cleanup failed: "+err.Error())
		return
	}
	logger.Info("Backup cleanup done",
		"run", run, "deleted", deleted, "retention_days", s.cfg.RetentionDays)
}

type nopNotifier struct{}

func (nopNotifier) NotifySuccess(context.Context, string) {}
func (nopNotifier) NotifyError(context.Context, string)   {}

type nopRecorder struct{}

func (nopRecorder) ObserveRefresh(string, error) {}
func (nopRecorder) ObserveBackup(string, error)  {}

// cronLogger adapts the cron library's logging hooks onto our logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	logger.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	logger.Error("cron: "+msg, append(kv, "error", err)...)
}
