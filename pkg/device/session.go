package device

import (
	"context"
	"time"
)

// SessionTimeout is the I/O timeout applied to an open device session.
const SessionTimeout = 60 * time.Second

// Session is the narrow surface this service needs from the device
// protocol. pkg/device/zk provides the wire implementation;
// pkg/device/devicetest provides an in-memory double.
//
// A Session is not safe for concurrent use; the owning Slot guarantees a
// single holder at a time. Callers never hold a Session directly, only
// inside Slot.With / Slot.WithWrite.
type Session interface {
	// Reads
	GetUsers() ([]User, error)
	GetAttendance() ([]Attendance, error)
	GetTemplates() ([]Fingerprint, error)
	GetInfo() (*Info, error)
	ReadSizes() (*Sizes, error)
	GetTime() (time.Time, error)

	// Writes. Callers must hold write mode (Slot.WithWrite) for these;
	// the terminal rejects user interaction while disabled.
	SetUser(u User) error
	DeleteUser(uid int) error
	SetTime(t time.Time) error
	ClearAttendance() error
	SetFingerprint(fp Fingerprint) error

	// Control
	Restart() error
	DisableDevice() error
	EnableDevice() error

	// Disconnect tears the session down. Errors are logged and swallowed
	// by the Slot.
	Disconnect() error
}

// Dialer opens a Session against one terminal. Implementations must apply
// SessionTimeout to all I/O on the returned session and wrap transport
// failures in ErrOffline.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}
