package service

import (
	"context"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// ListFingerprints reads templates from a device, optionally filtered by
// user id. Template user ids are resolved through the user table since
// templates only carry the device uid.
func (s *Service) ListFingerprints(ctx context.Context, key, userID string) ([]device.Fingerprint, error) {
	slot, err := s.pool.Client(key)
	if err != nil {
		return nil, err
	}

	var templates []device.Fingerprint
	err = slot.WithRetry(ctx, func(sess device.Session) error {
		users, uerr := sess.GetUsers()
		if uerr != nil {
			return uerr
		}
		tpls, terr := sess.GetTemplates()
		if terr != nil {
			return terr
		}

		byUID := make(map[int]string, len(users))
		for _, u := range users {
			byUID[u.UID] = u.UserID
		}
		for i := range tpls {
			if tpls[i].UserID == "" {
				tpls[i].UserID = byUID[tpls[i].UID]
			}
		}
		templates = tpls
		return nil
	})
	if err != nil {
		return nil, err
	}

	if userID == "" {
		return templates, nil
	}
	filtered := templates[:0]
	for _, t := range templates {
		if t.UserID == userID {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// CountFingerprints returns the number of stored templates.
func (s *Service) CountFingerprints(ctx context.Context, key string) (int, error) {
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
		n = sizes.Fingers
		return nil
	})
	return n, err
}

// FingerprintSummary returns the per-user template counts.
func (s *Service) FingerprintSummary(ctx context.Context, key string) (map[string]int, error) {
	templates, err := s.ListFingerprints(ctx, key, "")
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int)
	for _, t := range templates {
		summary[t.UserID]++
	}
	return summary, nil
}
