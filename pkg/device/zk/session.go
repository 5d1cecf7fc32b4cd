package zk

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// Dialer opens TCP sessions against real terminals.
type Dialer struct {
	// Timeout bounds each wire exchange. Zero means device.SessionTimeout.
	Timeout time.Duration
}

var _ device.Dialer = (*Dialer)(nil)

// Dial connects, performs the connect/auth handshake, and returns a live
// session. Any transport or handshake failure is reported as
// device.ErrOffline so callers can classify it.
func (d *Dialer) Dial(ctx context.Context, cfg device.Config) (device.Session, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = device.SessionTimeout
	}

	nd := net.Dialer{Timeout: timeout}
	conn, err := nd.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrOffline, err)
	}

	s := &session{
		t:       &transport{conn: conn, timeout: timeout},
		replyID: 0xfffe,
	}
	if err := s.handshake(cfg.Password); err != nil {
		_ = s.t.close()
		return nil, fmt.Errorf("%w: handshake: %v", device.ErrOffline, err)
	}
	return s, nil
}

// session is one live connection. Not safe for concurrent use; the owning
// device.Slot serializes callers.
type session struct {
	t         *transport
	sessionID uint16
	replyID   uint16
}

var _ device.Session = (*session)(nil)

func (s *session) handshake(password int) error {
	resp, err := s.exchange(cmdConnect, nil)
	if err != nil {
		return err
	}
	s.sessionID = resp.session

	switch resp.command {
	case replyAckOK:
		return nil
	case replyAckUnauth:
		auth, err := s.exchange(cmdAuth, makeCommKey(password, s.sessionID))
		if err != nil {
			return err
		}
		if auth.command != replyAckOK {
			return fmt.Errorf("auth rejected (reply %d)", auth.command)
		}
		return nil
	default:
		return fmt.Errorf("connect rejected (reply %d)", resp.command)
	}
}

// exchange sends one command and returns the next frame.
func (s *session) exchange(command uint16, payload []byte) (packet, error) {
	s.replyID++
	if err := s.t.send(encodeFrame(command, s.sessionID, s.replyID, payload)); err != nil {
		return packet{}, fmt.Errorf("%w: %v", device.ErrOffline, err)
	}
	resp, err := s.t.recv()
	if err != nil {
		return packet{}, fmt.Errorf("%w: %v", device.ErrOffline, err)
	}
	return resp, nil
}

// ack runs a command that only returns a status frame.
func (s *session) ack(command uint16, payload []byte) error {
	resp, err := s.exchange(command, payload)
	if err != nil {
		return err
	}
	if resp.command != replyAckOK {
		return fmt.Errorf("command %d failed (reply %d)", command, resp.command)
	}
	return nil
}

// readTable performs a buffered bulk read: the device either answers with
// the data inline, or announces the size with a prepare frame and streams
// data frames until done. The trailing free-data releases the device-side
// buffer. The descriptor names the underlying table read command and its
// function selector.
func (s *session) readTable(readCmd uint16, fct byte) ([]byte, error) {
	req := make([]byte, 11)
	req[0] = 0x01
	binary.LittleEndian.PutUint16(req[1:], readCmd)
	binary.LittleEndian.PutUint32(req[3:], uint32(fct)<<8)

	resp, err := s.exchange(cmdDataWrapRead, req)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch resp.command {
	case replyData, replyAckData:
		data = resp.payload
	case replyPrepare:
		if len(resp.payload) < 4 {
			return nil, fmt.Errorf("short prepare frame")
		}
		size := binary.LittleEndian.Uint32(resp.payload)
		data = make([]byte, 0, size)
		for uint32(len(data)) < size {
			chunk, err := s.t.recv()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", device.ErrOffline, err)
			}
			switch chunk.command {
			case replyData:
				data = append(data, chunk.payload...)
			case replyAckOK:
				// Device finished early; trust what we have.
				size = uint32(len(data))
			default:
				return nil, fmt.Errorf("unexpected frame %d during bulk read", chunk.command)
			}
		}
	case replyAckOK:
		// Empty table.
	default:
		return nil, fmt.Errorf("bulk read rejected (reply %d)", resp.command)
	}

	if err := s.ack(cmdFreeData, nil); err != nil {
		return nil, err
	}

	// The first 4 bytes carry the table size; strip when present.
	if len(data) >= 4 {
		if sz := binary.LittleEndian.Uint32(data); uint32(len(data)-4) == sz {
			data = data[4:]
		}
	}
	return data, nil
}

const (
	userRecordSize       = 72
	attendanceRecordSize = 40
)

func (s *session) GetUsers() ([]device.User, error) {
	data, err := s.readTable(cmdUserTempRead, fctUser)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	users := make([]device.User, 0, len(data)/userRecordSize)
	for len(data) >= userRecordSize {
		rec := data[:userRecordSize]
		data = data[userRecordSize:]

		users = append(users, device.User{
			UID:       int(binary.LittleEndian.Uint16(rec[0:])),
			Privilege: int(rec[2]),
			Password:  cstring(rec[3:11]),
			Name:      cstring(rec[11:35]),
			Card:      int(binary.LittleEndian.Uint32(rec[35:])),
			GroupID:   cstring(rec[40:47]),
			UserID:    cstring(rec[48:72]),
		})
	}
	return users, nil
}

func (s *session) GetAttendance() ([]device.Attendance, error) {
	data, err := s.readTable(cmdAttLogRead, fctAttLog)
	if err != nil {
		return nil, fmt.Errorf("read attendance: %w", err)
	}

	recs := make([]device.Attendance, 0, len(data)/attendanceRecordSize)
	for len(data) >= attendanceRecordSize {
		rec := data[:attendanceRecordSize]
		data = data[attendanceRecordSize:]

		recs = append(recs, device.Attendance{
			UID:       int(binary.LittleEndian.Uint16(rec[0:])),
			UserID:    cstring(rec[2:26]),
			Status:    int(rec[26]),
			Timestamp: decodeTime(binary.LittleEndian.Uint32(rec[27:])),
			Punch:     int(rec[31]),
		})
	}
	return recs, nil
}

func (s *session) GetTemplates() ([]device.Fingerprint, error) {
	data, err := s.readTable(cmdDBRead, fctFingerTmp)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	// Templates are variable length: size(2) uid(2) finger(1) valid(1) bytes.
	var fps []device.Fingerprint
	for len(data) >= 6 {
		size := int(binary.LittleEndian.Uint16(data[0:]))
		if size < 6 || size > len(data) {
			return nil, fmt.Errorf("corrupt template record (size %d, %d left)", size, len(data))
		}
		tpl := make([]byte, size-6)
		copy(tpl, data[6:size])
		fps = append(fps, device.Fingerprint{
			UID:         int(binary.LittleEndian.Uint16(data[2:])),
			FingerIndex: int(data[4]),
			Valid:       int(data[5]),
			Template:    tpl,
		})
		data = data[size:]
	}
	return fps, nil
}

func (s *session) GetInfo() (*device.Info, error) {
	version, err := s.deviceString(cmdGetVersion, "")
	if err != nil {
		return nil, fmt.Errorf("read firmware version: %w", err)
	}

	info := &device.Info{FirmwareVersion: version}
	for _, opt := range []struct {
		param string
		dst   *string
	}{
		{"~SerialNumber", &info.SerialNumber},
		{"~Platform", &info.Platform},
		{"~DeviceName", &info.DeviceName},
		{"MAC", &info.MACAddress},
	} {
		val, err := s.deviceString(cmdOptionsRead, opt.param)
		if err != nil {
			return nil, fmt.Errorf("read option %s: %w", opt.param, err)
		}
		*opt.dst = val
	}

	sizes, err := s.ReadSizes()
	if err != nil {
		return nil, err
	}
	info.UserCount = sizes.Users
	info.FingerCount = sizes.Fingers
	info.AttendanceCount = sizes.Records

	if t, err := s.GetTime(); err == nil {
		info.DeviceTime = &t
	}
	return info, nil
}

// deviceString reads a string-valued command. Option reads answer
// "name=value"; plain commands answer the raw string.
func (s *session) deviceString(command uint16, param string) (string, error) {
	var payload []byte
	if param != "" {
		payload = append([]byte(param), 0)
	}
	resp, err := s.exchange(command, payload)
	if err != nil {
		return "", err
	}
	if resp.command != replyAckOK && resp.command != replyAckData {
		return "", fmt.Errorf("command %d failed (reply %d)", command, resp.command)
	}
	val := cstring(resp.payload)
	if _, after, found := strings.Cut(val, "="); found && param != "" {
		val = after
	}
	return strings.TrimSpace(val), nil
}

func (s *session) ReadSizes() (*device.Sizes, error) {
	resp, err := s.exchange(cmdGetFreeSizes, nil)
	if err != nil {
		return nil, fmt.Errorf("read sizes: %w", err)
	}
	if resp.command != replyAckOK || len(resp.payload) < 80 {
		return nil, fmt.Errorf("read sizes failed (reply %d, %d bytes)",
			resp.command, len(resp.payload))
	}

	field := func(i int) int {
		return int(int32(binary.LittleEndian.Uint32(resp.payload[i*4:])))
	}
	sizes := &device.Sizes{
		Users:   field(4),
		Fingers: field(6),
		Records: field(8),
	}
	if len(resp.payload) >= 84 {
		sizes.Faces = field(20)
	}
	return sizes, nil
}

func (s *session) GetTime() (time.Time, error) {
	resp, err := s.exchange(cmdGetTime, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("get time: %w", err)
	}
	if resp.command != replyAckOK || len(resp.payload) < 4 {
		return time.Time{}, fmt.Errorf("get time failed (reply %d)", resp.command)
	}
	return decodeTime(binary.LittleEndian.Uint32(resp.payload)), nil
}

func (s *session) SetTime(t time.Time) error {
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], encodeTime(t))
	if err := s.ack(cmdSetTime, payload[:]); err != nil {
		return fmt.Errorf("set time: %w", err)
	}
	return nil
}

func (s *session) SetUser(u device.User) error {
	name := u.Name
	if len(name) > device.MaxNameBytes {
		name = name[:device.MaxNameBytes]
	}

	rec := make([]byte, userRecordSize)
	binary.LittleEndian.PutUint16(rec[0:], uint16(u.UID))
	rec[2] = byte(u.Privilege)
	copy(rec[3:11], u.Password)
	copy(rec[11:35], name)
	binary.LittleEndian.PutUint32(rec[35:], uint32(u.Card))
	copy(rec[40:47], u.GroupID)
	copy(rec[48:72], u.UserID)

	if err := s.ack(cmdUserWrite, rec); err != nil {
		return fmt.Errorf("write user %d: %w", u.UID, err)
	}
	return nil
}

func (s *session) DeleteUser(uid int) error {
	var payload [2]byte
	binary.LittleEndian.PutUint16(payload[:], uint16(uid))
	if err := s.ack(cmdDeleteUser, payload[:]); err != nil {
		return fmt.Errorf("delete user %d: %w", uid, err)
	}
	return nil
}

func (s *session) SetFingerprint(fp device.Fingerprint) error {
	rec := make([]byte, 6+len(fp.Template))
	binary.LittleEndian.PutUint16(rec[0:], uint16(len(rec)))
	binary.LittleEndian.PutUint16(rec[2:], uint16(fp.UID))
	rec[4] = byte(fp.FingerIndex)
	rec[5] = byte(fp.Valid)
	copy(rec[6:], fp.Template)

	if err := s.ack(cmdUserTempWrite, rec); err != nil {
		return fmt.Errorf("write template uid=%d finger=%d: %w",
			fp.UID, fp.FingerIndex, err)
	}
	return nil
}

func (s *session) ClearAttendance() error {
	if err := s.ack(cmdClearAttLog, nil); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	return nil
}

func (s *session) Restart() error {
	// The device drops the connection on restart; the send alone succeeds.
	s.replyID++
	if err := s.t.send(encodeFrame(cmdRestart, s.sessionID, s.replyID, nil)); err != nil {
		return fmt.Errorf("%w: restart: %v", device.ErrOffline, err)
	}
	return nil
}

func (s *session) DisableDevice() error {
	if err := s.ack(cmdDisableDevice, nil); err != nil {
		return fmt.Errorf("disable device: %w", err)
	}
	return nil
}

func (s *session) EnableDevice() error {
	if err := s.ack(cmdEnableDevice, nil); err != nil {
		return fmt.Errorf("enable device: %w", err)
	}
	return nil
}

func (s *session) Disconnect() error {
	err := s.ack(cmdExit, nil)
	if cerr := s.t.close(); err == nil {
		err = cerr
	}
	return err
}
