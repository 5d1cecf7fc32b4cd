package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// SyncChange is one planned user write during an HRIS sync.
type SyncChange struct {
	UID    int    `json:"uid"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Device        string       `json:"device"`
	HRISEmployees int          `json:"hris_employees"`
	DeviceUsers   int          `json:"device_users"`
	ToAdd         []SyncChange `json:"to_add"`
	ToUpdate      []SyncChange `json:"to_update"`
	Unchanged     []string     `json:"unchanged"`
	DryRun        bool         `json:"dry_run"`
}

// SyncUsersFromHRIS diffs the HRIS employee list against a device's users
// by user id and enrolls or renames as needed. Additions get
// uid = max(uid)+1+k where k is the position in the add list. dryRun
// computes the plan without touching the device.
func (s *Service) SyncUsersFromHRIS(ctx context.Context, key string, dryRun bool) (*SyncResult, error) {
	if s.directory == nil {
		return nil, fmt.Errorf("%w: HRIS directory", ErrNotConfigured)
	}

	employees, err := s.directory.Employees(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.ListUsers(ctx, key)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]device.User, len(users))
	maxUID := 0
	for _, u := range users {
		existing[u.UserID] = u
		if u.UID > maxUID {
			maxUID = u.UID
		}
	}

	result := &SyncResult{
		Device:        key,
		HRISEmployees: len(employees),
		DeviceUsers:   len(users),
		DryRun:        dryRun,
	}
	for _, emp := range employees {
		id := strings.TrimSpace(emp.ID)
		name := truncateName(emp.Name)

		if u, ok := existing[id]; ok {
			if u.Name != name {
				result.ToUpdate = append(result.ToUpdate,
					SyncChange{UID: u.UID, UserID: id, Name: name})
			} else {
				result.Unchanged = append(result.Unchanged, id)
			}
			continue
		}
		result.ToAdd = append(result.ToAdd,
			SyncChange{UID: maxUID + 1 + len(result.ToAdd), UserID: id, Name: name})
	}

	if dryRun {
		logger.Info("HRIS sync dry run",
			"device", key, "to_add", len(result.ToAdd),
			"to_update", len(result.ToUpdate), "unchanged", len(result.Unchanged))
		return result, nil
	}
	if len(result.ToAdd) == 0 && len(result.ToUpdate) == 0 {
		return result, nil
	}

	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}
	err = slot.WithWrite(ctx, func(sess device.Session) error {
		for _, c := range append(result.ToAdd, result.ToUpdate...) {
			u := device.User{UID: c.UID, UserID: c.UserID, Name: c.Name}
			if prev, ok := existing[c.UserID]; ok {
				u.Privilege = prev.Privilege
				u.Password = prev.Password
				u.Card = prev.Card
				u.GroupID = prev.GroupID
			}
			if werr := sess.SetUser(u); werr != nil {
				return fmt.Errorf("set user %s (uid %d): %w", c.UserID, c.UID, werr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("HRIS sync applied",
		"device", key, "added", len(result.ToAdd),
		"updated", len(result.ToUpdate), "unchanged", len(result.Unchanged))
	return result, nil
}
