// Package app wires the process: Settings drive construction of the
// device pool, the attendance cache, object storage, the HRIS directory,
// the notifier, the facade, and the scheduler. Construction order is
// Settings, Pool, Cache, Scheduler; Shutdown tears down in reverse.
package app

import (
	"context"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/cache"
	"github.com/abcfood/fingerprint-bridge/pkg/config"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/device/zk"
	"github.com/abcfood/fingerprint-bridge/pkg/hris"
	"github.com/abcfood/fingerprint-bridge/pkg/notify"
	"github.com/abcfood/fingerprint-bridge/pkg/scheduler"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
	"github.com/abcfood/fingerprint-bridge/pkg/storage"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App is the application context. No package-level singletons; everything
// hangs off this value.
type App struct {
	Settings  *config.Settings
	Pool      *device.Pool
	Cache     *cache.Cache
	Scheduler *scheduler.Scheduler
	Store     *storage.BackupStore
	Directory hris.Directory
	Notifier  *notify.Hub
	Service   *service.Service
}

// New builds the full application context from settings. Peripherals that
// are not configured (S3, HRIS, chat channels) are left nil and the
// dependent features degrade per the facade's contract.
func New(ctx context.Context, settings *config.Settings) (*App, error) {
	pool, err := device.NewPool(settings.ZKMachinesConfig, &zk.Dialer{})
	if err != nil {
		return nil, err
	}
	c := cache.New(pool)

	var store *storage.BackupStore
	if settings.S3Configured() {
		client, err := storage.NewClient(ctx,
			settings.S3Endpoint, settings.S3Region,
			settings.S3AccessKey, settings.S3SecretKey)
		if err != nil {
			return nil, err
		}
		store = storage.NewBackupStore(client, settings.S3Bucket)
	} else {
		logger.Warn("S3 credentials not set, backups disabled")
	}

	var directory hris.Directory
	if settings.OdooConfigured() {
		directory = hris.NewOdooDirectory(hris.OdooConfig{
			Host:     settings.OdooHost,
			Port:     settings.OdooPort,
			Protocol: settings.OdooProtocol,
			Database: settings.OdooDB,
			Login:    settings.OdooUser,
			Password: settings.OdooPassword,
		})
	} else {
		logger.Warn("Odoo credentials not set, HRIS sync disabled")
	}

	var senders []notify.Sender
	if settings.TelegramBotToken != "" && settings.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegram(
			settings.TelegramBotToken, settings.TelegramChatID))
	}
	if settings.MattermostWebhookURL != "" {
		senders = append(senders, notify.NewMattermost(settings.MattermostWebhookURL))
	}
	hub := notify.NewHub(settings.Environment, senders...)

	svc := service.New(pool, c, store, directory)

	var backupJob scheduler.BackupRunner
	var cleaner scheduler.Cleaner
	if store != nil {
		backupJob = backupRunner{svc}
		cleaner = store
	}
	sched := scheduler.New(scheduler.Config{
		RefreshInterval:           time.Duration(settings.CacheRefreshMinutes) * time.Minute,
		BackupHourUTC:             settings.BackupHourUTC,
		BackupMinuteUTC:           settings.BackupMinuteUTC,
		RetentionDays:             settings.BackupRetentionDays,
		IncludeAttendanceInBackup: true,
	}, pool.Keys(), c, backupJob, cleaner, hub)

	return &App{
		Settings:  settings,
		Pool:      pool,
		Cache:     c,
		Scheduler: sched,
		Store:     store,
		Directory: directory,
		Notifier:  hub,
		Service:   svc,
	}, nil
}

// StartScheduler starts background jobs when enabled in settings.
func (a *App) StartScheduler() error {
	if !a.Settings.SchedulerEnabled {
		logger.Info("Scheduler disabled by configuration")
		return nil
	}
	return a.Scheduler.Start()
}

// Shutdown tears the context down in reverse construction order. The
// scheduler stops accepting fires; in-flight device sessions finish on
// their own goroutines.
func (a *App) Shutdown() {
	a.Scheduler.Stop()
	logger.Info("Application context shut down")
}

// backupRunner adapts the facade's backup entry point to the scheduler's
// job shape.
type backupRunner struct {
	svc *service.Service
}

func (b backupRunner) Run(ctx context.Context, key string, includeAttendance bool) (string, error) {
	res, err := b.svc.RunBackup(ctx, key, includeAttendance)
	if err != nil {
		return "", err
	}
	return res.S3Key, nil
}
