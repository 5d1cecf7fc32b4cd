package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// ListUsers reads all user records from a device.
func (s *Service) ListUsers(ctx context.Context, key string) ([]device.User, error) {
	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}
	var users []device.User
	err = slot.WithRetry(ctx, func(sess device.Session) error {
		var uerr error
		users, uerr = sess.GetUsers()
		return uerr
	})
	return users, err
}

// GetUser finds a user by the external user id.
func (s *Service) GetUser(ctx context.Context, key, userID string) (*device.User, error) {
	users, err := s.ListUsers(ctx, key)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].UserID == userID {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("%w: user_id %q on %s", device.ErrUnknownUser, userID, key)
}

// AddUser enrolls a user on a device. The name is truncated to the
// terminal's field limit.
func (s *Service) AddUser(ctx context.Context, key string, u device.User) error {
	slot, err := s.pool.Client(key)
	if err != nil {
		return err
	}
	u.Name = truncateName(u.Name)
	err = slot.WithWrite(ctx, func(sess device.Session) error {
		return sess.SetUser(u)
	})
	if err != nil {
		return err
	}
	logger.Info("User added", "device", key, "uid", u.UID, "user_id", u.UserID)
	return nil
}

// UserUpdate carries the fields to change; nil means keep the current
// value. The device password is always preserved.
type UserUpdate struct {
	Name      *string
	UserID    *string
	Privilege *int
	Card      *int
}

// UpdateUser rewrites an existing user record, read-modify-write under one
// write-mode session. A missing uid fails with ErrUnknownUser.
func (s *Service) UpdateUser(ctx context.Context, key string, uid int, upd UserUpdate) error {
	slot, err := s.pool.Client(key)
	if err != nil {
		return err
	}

	err = slot.WithWrite(ctx, func(sess device.Session) error {
		users, uerr := sess.GetUsers()
		if uerr != nil {
			return uerr
		}
		var current *device.User
		for i := range users {
			if users[i].UID == uid {
				current = &users[i]
				break
			}
		}
		if current == nil {
			return fmt.Errorf("%w: uid %d on %s", device.ErrUnknownUser, uid, key)
		}

		next := *current
		if upd.Name != nil {
			next.Name = truncateName(*upd.Name)
		}
		if upd.UserID != nil {
			next.UserID = *upd.UserID
		}
		if upd.Privilege != nil {
			next.Privilege = *upd.Privilege
		}
		if upd.Card != nil {
			next.Card = *upd.Card
		}
		return sess.SetUser(next)
	})
	if err != nil {
		return err
	}
	logger.Info("User updated", "device", key, "uid", uid)
	return nil
}

// DeleteUser removes a user and their templates from a device. A missing
// uid fails with ErrUnknownUser.
func (s *Service) DeleteUser(ctx context.Context, key string, uid int) error {
	slot, err := s.pool.Client(key)
	if err != nil {
		return err
	}
	err = slot.WithWrite(ctx, func(sess device.Session) error {
		users, uerr := sess.GetUsers()
		if uerr != nil {
			return uerr
		}
		found := false
		for _, u := range users {
			if u.UID == uid {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: uid %d on %s", device.ErrUnknownUser, uid, key)
		}
		return sess.DeleteUser(uid)
	})
	if err != nil {
		return err
	}
	logger.Info("User deleted", "device", key, "uid", uid)
	return nil
}

// truncateName cuts a name down to the device field width without
// splitting a multi-byte rune at the cut point.
func truncateName(name string) string {
	if len(name) <= device.MaxNameBytes {
		return name
	}
	cut := name[:device.MaxNameBytes]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
