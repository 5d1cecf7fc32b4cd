package service

import (
	"context"
	"strconv"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/cache"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// GetAttendance returns punch records for a device filtered to the
// inclusive [from, to] range and sorted by timestamp. The cache is
// consulted first; useCache=false (or a miss) takes the slow path through
// the device.
func (s *Service) GetAttendance(ctx context.Context, key string, from, to *time.Time, useCache bool) ([]device.Attendance, error) {
	if useCache {
		if records, ok := s.cache.Get(key, from, to); ok {
			logger.Info("Attendance cache hit", "device", key, "records", len(records))
			return records, nil
		}
	}

	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}
	var records []device.Attendance
	err = slot.WithRetry(ctx, func(sess device.Session) error {
		var rerr error
		records, rerr = sess.GetAttendance()
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return cache.FilterSorted(records, from, to), nil
}

// CountAttendance prefers the cached count; on a miss it reads the cheap
// device size counters instead of transferring record bodies.
func (s *Service) CountAttendance(ctx context.Context, key string) (int, error) {
	if n, ok := s.cache.Count(key); ok {
		return n, nil
	}

	slot, err := s.pool.Client(key)
	if err != nil {
		return 0, err
	}
	var n int
	err = slot.WithRetry(ctx, func(sess device.Session) error {
		sizes, serr := sess.ReadSizes()
		if serr != nil {
			return serr
		}
		n = sizes.Records
		return nil
	})
	return n, err
}

// ClearAttendance wipes the punch log on the device. Irreversible.
func (s *Service) ClearAttendance(ctx context.Context, key string) error {
	slot, err := s.pool.Client(key)
	if err != nil {
		return err
	}
	err = slot.WithWrite(ctx, func(sess device.Session) error {
		return sess.ClearAttendance()
	})
	if err != nil {
		return err
	}
	logger.Info("Attendance cleared", "device", key)
	return nil
}

// HRISRow is one attendance record in the HRIS import shape.
type HRISRow struct {
	MachineCode    string `json:"machine_code"`
	MachineName    string `json:"machine_name"`
	DeviceID       string `json:"device_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	AttendanceType string `json:"attendance_type"`
	PunchType      string `json:"punch_type"`
}

var punchTypes = map[int]string{
	0: "Check-In",
	1: "Check-Out",
	2: "Break-Out",
	3: "Break-In",
	4: "OT-In",
	5: "OT-Out",
}

// FormatForHRIS maps raw records to the HRIS fingerprint-log import rows.
func FormatForHRIS(records []device.Attendance, deviceKey, deviceName string) []HRISRow {
	rows := make([]HRISRow, 0, len(records))
	for _, r := range records {
		punch, ok := punchTypes[r.Status]
		if !ok {
			punch = strconv.Itoa(r.Status)
		}
		rows = append(rows, HRISRow{
			MachineCode:    deviceKey,
			MachineName:    deviceName,
			DeviceID:       r.UserID,
			Date:           r.Timestamp.Format("2006-01-02 15:04:05"),
			Time:           r.Timestamp.Format("15:04:05"),
			AttendanceType: "regular",
			PunchType:      punch,
		})
	}
	return rows
}
