package service

import "errors"

// ErrNotConfigured means the operation needs a peripheral (object
// storage, HRIS) that was not configured at startup.
var ErrNotConfigured = errors.New("feature not configured")
