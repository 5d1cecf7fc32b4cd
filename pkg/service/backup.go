package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/storage"
)

// BackupResult summarizes one completed backup.
type BackupResult struct {
	Device           string `json:"device"`
	DeviceName       string `json:"device_name"`
	S3Key            string `json:"s3_key"`
	UserCount        int    `json:"user_count"`
	FingerprintCount int    `json:"fingerprint_count"`
	AttendanceCount  int    `json:"attendance_count"`
	Timestamp        string `json:"timestamp"`
}

// RestoreResult summarizes one restore run.
type RestoreResult struct {
	S3Key               string `json:"s3_key"`
	TargetDevice        string `json:"target_device"`
	UserCount           int    `json:"user_count"`
	FingerprintCount    int    `json:"fingerprint_count"`
	SkippedFingerprints int    `json:"skipped_fingerprints"`
	DryRun              bool   `json:"dry_run"`
}

// RunBackup reads users and templates (plus attendance when asked) from a
// device and uploads one BackupRecord to object storage. Attendance
// prefers the cache snapshot; a miss falls back to a device fetch within
// the same session.
func (s *Service) RunBackup(ctx context.Context, key string, includeAttendance bool) (*BackupResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: object storage", ErrNotConfigured)
	}
	cfg, err := s.pool.Config(key)
	if err != nil {
		return nil, err
	}
	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}

	var attendance []device.Attendance
	cacheHit := false
	if includeAttendance {
		attendance, cacheHit = s.cache.Raw(key)
	}

	var users []device.User
	var templates []device.Fingerprint
	err = slot.WithRetry(ctx, func(sess device.Session) error {
		var serr error
		if users, serr = sess.GetUsers(); serr != nil {
			return serr
		}
		if templates, serr = sess.GetTemplates(); serr != nil {
			return serr
		}
		if includeAttendance && !cacheHit {
			if attendance, serr = sess.GetAttendance(); serr != nil {
				return serr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := &device.BackupRecord{
		DeviceKey:        key,
		DeviceName:       cfg.Name,
		Timestamp:        time.Now().UTC().Format(storage.TimestampLayout),
		Users:            users,
		Fingerprints:     templates,
		Attendance:       attendance,
		UserCount:        len(users),
		FingerprintCount: len(templates),
		AttendanceCount:  len(attendance),
	}
	s3Key, err := s.store.Upload(ctx, rec)
	if err != nil {
		return nil, err
	}

	logger.Info("Backup complete",
		"device", key, "users", rec.UserCount,
		"fingerprints", rec.FingerprintCount, "attendance", rec.AttendanceCount,
		"s3_key", s3Key)
	return &BackupResult{
		Device:           key,
		DeviceName:       cfg.Name,
		S3Key:            s3Key,
		UserCount:        rec.UserCount,
		FingerprintCount: rec.FingerprintCount,
		AttendanceCount:  rec.AttendanceCount,
		Timestamp:        rec.Timestamp,
	}, nil
}

// ListBackups enumerates stored backups, newest first; empty key lists all
// devices.
func (s *Service) ListBackups(ctx context.Context, key string) ([]storage.BackupInfo, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: object storage", ErrNotConfigured)
	}
	if key != "" {
		if _, err := s.pool.Config(key); err != nil {
			return nil, err
		}
	}
	return s.store.List(ctx, key)
}

// RestoreBackup writes a stored backup's users and fingerprints back onto
// a device. target overrides the backup's own device key. dryRun
// downloads and reports counts without any device write. User write
// failures abort the restore; fingerprint failures are logged and skipped.
func (s *Service) RestoreBackup(ctx context.Context, s3Key, target string, dryRun bool) (*RestoreResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: object storage", ErrNotConfigured)
	}

	rec, err := s.store.Download(ctx, s3Key)
	if err != nil {
		return nil, err
	}
	key := target
	if key == "" {
		key = rec.DeviceKey
	}
	if _, err := s.pool.Config(key); err != nil {
		return nil, err
	}

	result := &RestoreResult{
		S3Key:            s3Key,
		TargetDevice:     key,
		UserCount:        len(rec.Users),
		FingerprintCount: len(rec.Fingerprints),
		DryRun:           dryRun,
	}
	if dryRun {
		logger.Info("Restore dry run", "s3_key", s3Key, "target", key,
			"users", result.UserCount, "fingerprints", result.FingerprintCount)
		return result, nil
	}

	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}
	err = slot.WithWrite(ctx, func(sess device.Session) error {
		for _, u := range rec.Users {
			if werr := sess.SetUser(u); werr != nil {
				return fmt.Errorf("restore user uid %d: %w", u.UID, werr)
			}
		}
		for _, fp := range rec.Fingerprints {
			if werr := sess.SetFingerprint(fp); werr != nil {
				logger.Warn("Failed to restore fingerprint, skipping",
					"device", key, "uid", fp.UID,
					"finger", fp.FingerIndex, "error", werr)
				result.SkippedFingerprints++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Restore complete", "s3_key", s3Key, "target", key,
		"users", result.UserCount,
		"fingerprints", result.FingerprintCount-result.SkippedFingerprints,
		"skipped", result.SkippedFingerprints)
	return result, nil
}
