// Package devicetest provides an in-memory terminal double for tests. It
// implements device.Dialer and device.Session with scriptable failures and
// call recording, so higher layers can be tested without a terminal on the
// network.
package devicetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// Device is the scriptable state behind one fake terminal. All fields may
// be set before use; mutating them mid-test is safe, access is mutex
// guarded.
type Device struct {
	mu sync.Mutex

	Users       []device.User
	Attendance  []device.Attendance
	Templates   []device.Fingerprint
	Info        device.Info
	Clock       time.Time
	Disabled    bool

	// Failure scripting.
	DialErr    error // returned by every Dial while set
	FailDials  int   // fail this many Dials with ErrOffline, then succeed
	ReadErr    error // returned by every read op while set
	FailReads  int   // fail this many read ops with ErrOffline, then succeed
	WriteErr   error // returned by every write op while set
	FingerErr  error // returned by SetFingerprint while set
	EnableErr  error // returned by EnableDevice while set

	// Recording.
	DialCount int
	Calls     []string

	open    int
	maxOpen int
}

// NewDevice returns an empty online device.
func NewDevice() *Device {
	return &Device{Clock: time.Now()}
}

// MaxOpenSessions reports the peak number of concurrently open sessions.
// The per-device lock should keep this at 1.
func (d *Device) MaxOpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// CallNames returns a copy of the recorded operation names in order.
func (d *Device) CallNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.Calls))
	copy(out, d.Calls)
	return out
}

func (d *Device) record(name string) {
	d.Calls = append(d.Calls, name)
}

// Dialer routes Dial calls to fake devices by config key. Unknown keys get
// an empty device created on first dial.
type Dialer struct {
	mu      sync.Mutex
	devices map[string]*Device
}

var _ device.Dialer = (*Dialer)(nil)

func NewDialer() *Dialer {
	return &Dialer{devices: make(map[string]*Device)}
}

// Device returns the fake behind key, creating it if needed.
func (f *Dialer) Device(key string) *Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[key]
	if !ok {
		d = NewDevice()
		f.devices[key] = d
	}
	return d
}

func (f *Dialer) Dial(_ context.Context, cfg device.Config) (device.Session, error) {
	d := f.Device(cfg.Key)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialCount++
	d.record("Dial")
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if d.FailDials > 0 {
		d.FailDials--
		return nil, fmt.Errorf("%w: dial scripted to fail", device.ErrOffline)
	}

	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	return &session{dev: d}, nil
}

type session struct {
	dev    *Device
	closed bool
}

var _ device.Session = (*session)(nil)

func (s *session) readGate(name string) error {
	s.dev.record(name)
	if s.dev.ReadErr != nil {
		return s.dev.ReadErr
	}
	if s.dev.FailReads > 0 {
		s.dev.FailReads--
		return fmt.Errorf("%w: %s scripted to fail", device.ErrOffline, name)
	}
	return nil
}

func (s *session) GetUsers() ([]device.User, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.readGate("GetUsers"); err != nil {
		return nil, err
	}
	out := make([]device.User, len(s.dev.Users))
	copy(out, s.dev.Users)
	return out, nil
}

func (s *session) GetAttendance() ([]device.Attendance, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.readGate("GetAttendance"); err != nil {
		return nil, err
	}
	out := make([]device.Attendance, len(s.dev.Attendance))
	copy(out, s.dev.Attendance)
	return out, nil
}

func (s *session) GetTemplates() ([]device.Fingerprint, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.readGate("GetTemplates"); err != nil {
		return nil, err
	}
	out := make([]device.Fingerprint, len(s.dev.Templates))
	copy(out, s.dev.Templates)
	return out, nil
}

func (s *session) GetInfo() (*device.Info, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.readGate("GetInfo"); err != nil {
		return nil, err
	}
	info := s.dev.Info
	info.UserCount = len(s.dev.Users)
	info.FingerCount = len(s.dev.Templates)
	info.AttendanceCount = len(s.dev.Attendance)
	return &info, nil
}

func (s *session) ReadSizes() (*device.Sizes, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.readGate("ReadSizes"); err != nil {
		return nil, err
	}
	return &device.Sizes{
		Users:   len(s.dev.Users),
		Fingers: len(s.dev.Templates),
		Records: len(s.dev.Attendance),
	}, nil
}

func (s *session) GetTime() (time.Time, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.readGate("GetTime"); err != nil {
		return time.Time{}, err
	}
	return s.dev.Clock, nil
}

func (s *session) writeGate(name string) error {
	s.dev.record(name)
	return s.dev.WriteErr
}

func (s *session) SetUser(u device.User) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.writeGate("SetUser"); err != nil {
		return err
	}
	for i, existing := range s.dev.Users {
		if existing.UID == u.UID {
			s.dev.Users[i] = u
			return nil
		}
	}
	s.dev.Users = append(s.dev.Users, u)
	return nil
}

func (s *session) DeleteUser(uid int) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.writeGate("DeleteUser"); err != nil {
		return err
	}
	users := s.dev.Users[:0]
	for _, u := range s.dev.Users {
		if u.UID != uid {
			users = append(users, u)
		}
	}
	s.dev.Users = users

	tpls := s.dev.Templates[:0]
	for _, fp := range s.dev.Templates {
		if fp.UID != uid {
			tpls = append(tpls, fp)
		}
	}
	s.dev.Templates = tpls
	return nil
}

func (s *session) SetTime(t time.Time) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.writeGate("SetTime"); err != nil {
		return err
	}
	s.dev.Clock = t
	return nil
}

func (s *session) ClearAttendance() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.writeGate("ClearAttendance"); err != nil {
		return err
	}
	s.dev.Attendance = nil
	return nil
}

func (s *session) SetFingerprint(fp device.Fingerprint) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.writeGate("SetFingerprint"); err != nil {
		return err
	}
	if s.dev.FingerErr != nil {
		return s.dev.FingerErr
	}
	for i, existing := range s.dev.Templates {
		if existing.UID == fp.UID && existing.FingerIndex == fp.FingerIndex {
			s.dev.Templates[i] = fp
			return nil
		}
	}
	s.dev.Templates = append(s.dev.Templates, fp)
	return nil
}

func (s *session) Restart() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.record("Restart")
	return s.dev.WriteErr
}

func (s *session) DisableDevice() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.record("DisableDevice")
	if s.dev.WriteErr != nil {
		return s.dev.WriteErr
	}
	s.dev.Disabled = true
	return nil
}

func (s *session) EnableDevice() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.record("EnableDevice")
	if s.dev.EnableErr != nil {
		return s.dev.EnableErr
	}
	s.dev.Disabled = false
	return nil
}

func (s *session) Disconnect() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.record("Disconnect")
	if !s.closed {
		s.closed = true
		s.dev.open--
	}
	return nil
}
