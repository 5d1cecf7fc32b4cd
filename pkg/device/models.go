// Package device implements the connection manager for a fleet of ZKTeco
// fingerprint terminals: an immutable registry of device configurations
// (Pool) and a per-device session guard (Slot) that serializes all access
// to a terminal.
package device

import "time"

// Privilege levels on the terminal.
const (
	PrivilegeUser  = 0
	PrivilegeAdmin = 14
)

// MaxNameBytes is the terminal's limit for the user name field.
const MaxNameBytes = 24

// Config describes one terminal from the fleet YAML. Immutable after load.
type Config struct {
	Key      string `json:"key"      yaml:"-"`
	Name     string `json:"name"     yaml:"name"`
	IP       string `json:"ip"       yaml:"ip"`
	Port     int    `json:"port"     yaml:"port"`
	Password int    `json:"password" yaml:"password"`
	Model    string `json:"model"    yaml:"model"`
	Serial   string `json:"serial"   yaml:"serial"`
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	return joinHostPort(c.IP, c.Port)
}

// User is a user record on a terminal. UID is the device-internal slot
// number (unique per device only); UserID correlates with the HRIS
// employee identification across devices.
type User struct {
	UID       int    `json:"uid"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Privilege int    `json:"privilege"`
	Password  string `json:"password"`
	GroupID   string `json:"group_id"`
	Card      int    `json:"card"`
}

// Attendance is one punch record. Records are append-only on the device.
type Attendance struct {
	UID       int       `json:"uid"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Punch     int       `json:"punch"`
}

// Fingerprint is one stored template. Finger indexes 0..4 are the right
// hand (thumb to little finger), 5..9 the left. Template bytes are opaque
// and transported as base64 in JSON.
type Fingerprint struct {
	UID         int    `json:"uid"`
	UserID      string `json:"user_id"`
	FingerIndex int    `json:"finger_index"`
	Template    []byte `json:"template"`
	Valid       int    `json:"valid"`
}

// Info is transient device information gathered in a single read session.
type Info struct {
	FirmwareVersion string     `json:"firmware_version"`
	SerialNumber    string     `json:"serial_number"`
	Platform        string     `json:"platform"`
	DeviceName      string     `json:"device_name"`
	MACAddress      string     `json:"mac_address"`
	UserCount       int        `json:"user_count"`
	FingerCount     int        `json:"fp_count"`
	AttendanceCount int        `json:"attendance_count"`
	DeviceTime      *time.Time `json:"device_time,omitempty"`
}

// Sizes holds the record counters returned by the cheap read-sizes call
// (~100ms, no record bodies transferred).
type Sizes struct {
	Users   int `json:"users"`
	Fingers int `json:"fingers"`
	Records int `json:"records"`
	Faces   int `json:"faces"`
}

// Status is a health snapshot of one terminal.
type Status struct {
	Key       string    `json:"key"`
	Config    Config    `json:"config"`
	Online    bool      `json:"online"`
	Info      *Info     `json:"info,omitempty"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// BackupRecord is the serialization shape stored in object storage.
type BackupRecord struct {
	DeviceKey        string        `json:"device_key"`
	DeviceName       string        `json:"device_name"`
	Timestamp        string        `json:"timestamp"`
	Users            []User        `json:"users"`
	Fingerprints     []Fingerprint `json:"fingerprints"`
	Attendance       []Attendance  `json:"attendance,omitempty"`
	UserCount        int           `json:"user_count"`
	FingerprintCount int           `json:"fingerprint_count"`
	AttendanceCount  int           `json:"attendance_count"`
}
