package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// Slot guards a single terminal. It owns the device's exclusive lock and
// the current session handle; all device I/O flows through With or
// WithWrite, which guarantee disconnect on every exit path.
//
// Acquisition is NOT re-entrant: calling With from inside a With callback
// on the same slot deadlocks, exactly like a second process queueing on
// the device. Compose work inside one session instead.
type Slot struct {
	cfg    Config
	dialer Dialer
	mu     sync.Mutex
	log    *slog.Logger
}

func newSlot(cfg Config, dialer Dialer) *Slot {
	return &Slot{
		cfg:    cfg,
		dialer: dialer,
		log:    logger.With("device", cfg.Key),
	}
}

// Config returns the device configuration this slot guards.
func (s *Slot) Config() Config {
	return s.cfg
}

// With acquires the slot, opens a session, runs fn, and disconnects.
// Acquisition blocks behind any in-flight operation on the same device;
// there is no lock timeout (requests queue), but session I/O is bounded by
// SessionTimeout. Disconnect errors are logged and swallowed.
func (s *Slot) With(ctx context.Context, fn func(Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.dialer.Dial(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("connect %s (%s): %w", s.cfg.Key, s.cfg.Addr(), err)
	}
	s.log.Info("Connected", "addr", s.cfg.Addr())

	defer func() {
		if derr := sess.Disconnect(); derr != nil {
			s.log.Warn("Disconnect failed", "error", derr)
		} else {
			s.log.Debug("Disconnected")
		}
	}()

	return fn(sess)
}

// WithWrite is With plus the write-mode guard: the device is disabled
// before fn runs and re-enabled on every exit path. A failed re-enable is
// logged but not propagated; the device re-enables itself after a timeout.
func (s *Slot) WithWrite(ctx context.Context, fn func(Session) error) error {
	return s.With(ctx, func(sess Session) error {
		if err := sess.DisableDevice(); err != nil {
			return fmt.Errorf("disable device %s: %w", s.cfg.Key, err)
		}
		defer func() {
			if err := sess.EnableDevice(); err != nil {
				s.log.Error("Failed to re-enable device", "error", err)
			}
		}()
		return fn(sess)
	})
}
