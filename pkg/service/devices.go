package service

import (
	"context"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// ListDevices returns the configured fleet in file order.
func (s *Service) ListDevices() []device.Config {
	keys := s.pool.Keys()
	out := make([]device.Config, 0, len(keys))
	for _, key := range keys {
		cfg, err := s.pool.Config(key)
		if err != nil {
			continue
		}
		out = append(out, cfg)
	}
	return out
}

// DeviceStatus probes one device: connects, reads device info, reports
// online/offline. An unreachable device is a result, not an error; only an
// unknown key fails.
func (s *Service) DeviceStatus(ctx context.Context, key string) (*device.Status, error) {
	cfg, err := s.pool.Config(key)
	if err != nil {
		return nil, err
	}
	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}

	status := &device.Status{Key: key, Config: cfg, LastCheck: time.Now()}
	err = slot.With(ctx, func(sess device.Session) error {
		info, ierr := sess.GetInfo()
		if ierr != nil {
			return ierr
		}
		status.Info = info
		return nil
	})
	if err != nil {
		status.Online = false
		status.Error = err.Error()
		logger.Warn("Device offline", "device", key, "error", err)
	} else {
		status.Online = true
	}
	return status, nil
}

// AllDeviceStatuses probes every device sequentially in fleet order.
func (s *Service) AllDeviceStatuses(ctx context.Context) []*device.Status {
	keys := s.pool.Keys()
	out := make([]*device.Status, 0, len(keys))
	for _, key := range keys {
		st, err := s.DeviceStatus(ctx, key)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Ping reports whether a session can be opened against the device.
func (s *Service) Ping(ctx context.Context, key string) (bool, error) {
	slot, err := s.pool.Client(key)
	if err != nil {
		return false, err
	}
	if err := slot.With(ctx, func(device.Session) error { return nil }); err != nil {
		return false, nil
	}
	return true, nil
}

// DeviceTime reads the device clock.
func (s *Service) DeviceTime(ctx context.Context, key string) (time.Time, error) {
	slot, err := s.pool.Client(key)
	if err != nil {
		return time.Time{}, err
	}
	var t time.Time
	err = slot.WithRetry(ctx, func(sess device.Session) error {
		var terr error
		t, terr = sess.GetTime()
		return terr
	})
	return t, err
}

// SyncDeviceTime sets the device clock to the current system time.
func (s *Service) SyncDeviceTime(ctx context.Context, key string) error {
	slot, err := s.pool.Client(key)
	if err != nil {
		return err
	}
	err = slot.WithWrite(ctx, func(sess device.Session) error {
		return sess.SetTime(time.Now())
	})
	if err != nil {
		return err
	}
	logger.Info("Device time synced", "device", key)
	return nil
}

// RestartDevice reboots the terminal.
func (s *Service) RestartDevice(ctx context.Context, key string) error {
	slot, err := s.pool.Client(key)
	if err != nil {
		return err
	}
	err = slot.With(ctx, func(sess device.Session) error {
		return sess.Restart()
	})
	if err != nil {
		return err
	}
	logger.Info("Device restarted", "device", key)
	return nil
}
