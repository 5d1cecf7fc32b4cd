// Package zk speaks the ZKTeco binary protocol over TCP. It is the wire
// implementation of device.Session; the rest of the service only depends
// on the interface.
//
// Packet layout (little-endian): an 8-byte TCP transport header
// (magic 0x5050827d + payload length) followed by the command frame
// command(2) checksum(2) session(2) reply(2) and an optional payload.
package zk

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Command codes used by this service.
const (
	cmdConnect       = 1000
	cmdExit          = 1001
	cmdEnableDevice  = 1002
	cmdDisableDevice = 1003
	cmdRestart       = 1004
	cmdGetTime       = 201
	cmdSetTime       = 202
	cmdAuth          = 1102
	cmdGetVersion    = 1100
	cmdOptionsRead   = 11
	cmdGetFreeSizes  = 50
	cmdUserWrite     = 8
	cmdUserTempRead  = 9
	cmdUserTempWrite = 10
	cmdDBRead        = 7
	cmdAttLogRead    = 13
	cmdDeleteUser    = 18
	cmdClearAttLog   = 15
	cmdDataWrapRead  = 1503
	cmdFreeData      = 1502

	replyAckOK     = 2000
	replyAckError  = 2001
	replyAckData   = 2002
	replyAckUnauth = 2005
	replyPrepare   = 1500
	replyData      = 1501
)

// Table function selectors for buffered reads.
const (
	fctAttLog    = 0
	fctFingerTmp = 2
	fctUser      = 5
)

// tcpMagic prefixes every frame on the TCP transport.
const tcpMagic = 0x7d825050

const headerSize = 8

// packet is one decoded command frame.
type packet struct {
	command uint16
	session uint16
	reply   uint16
	payload []byte
}

// checksum is the 16-bit ones-complement sum over the frame with the
// checksum field zeroed.
func checksum(buf []byte) uint16 {
	var sum uint32
	i := 0
	for ; i+1 < len(buf); i += 2 {
		sum += uint32(binary.LittleEndian.Uint16(buf[i:]))
	}
	if i < len(buf) {
		sum += uint32(buf[i])
	}
	for sum > 0xffff {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(^sum)
}

// encodeFrame builds the command frame (without the TCP header).
func encodeFrame(command, session, reply uint16, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:], command)
	binary.LittleEndian.PutUint16(buf[4:], session)
	binary.LittleEndian.PutUint16(buf[6:], reply)
	copy(buf[headerSize:], payload)
	binary.LittleEndian.PutUint16(buf[2:], checksum(buf))
	return buf
}

// decodeFrame parses a command frame.
func decodeFrame(buf []byte) (packet, error) {
	if len(buf) < headerSize {
		return packet{}, fmt.Errorf("short frame: %d bytes", len(buf))
	}
	return packet{
		command: binary.LittleEndian.Uint16(buf[0:]),
		session: binary.LittleEndian.Uint16(buf[4:]),
		reply:   binary.LittleEndian.Uint16(buf[6:]),
		payload: buf[headerSize:],
	}, nil
}

// encodeTime packs a time the way the terminal stores it: seconds counted
// in a calendar where every month has 31 days and years start at 2000.
func encodeTime(t time.Time) uint32 {
	days := uint32(t.Year()%100)*12*31 + uint32(t.Month()-1)*31 + uint32(t.Day()-1)
	return days*86400 + uint32(t.Hour()*3600+t.Minute()*60+t.Second())
}

// decodeTime is the inverse of encodeTime, in the local timezone.
func decodeTime(v uint32) time.Time {
	sec := int(v % 60)
	v /= 60
	min := int(v % 60)
	v /= 60
	hour := int(v % 24)
	v /= 24
	day := int(v%31) + 1
	v /= 31
	month := time.Month(v%12 + 1)
	year := int(v/12) + 2000
	return time.Date(year, month, day, hour, min, sec, 0, time.Local)
}

// makeCommKey derives the authentication payload for CMD_AUTH from the
// device password and session id.
func makeCommKey(password int, sessionID uint16) []byte {
	key := uint32(0)
	for i := 0; i < 32; i++ {
		if password&(1<<i) != 0 {
			key |= 1 << (31 - i)
		}
	}
	key += uint32(sessionID)

	k := []byte{
		byte(key) ^ 'Z',
		byte(key>>8) ^ 'K',
		byte(key>>16) ^ 'S',
		byte(key>>24) ^ 'O',
	}
	// Swap the halves and fold in a fixed ticks byte, per the protocol.
	const ticks = 50
	k[0], k[1], k[2], k[3] = k[2], k[3], k[0], k[1]
	return []byte{k[0] ^ ticks, k[1] ^ ticks, ticks, k[3] ^ ticks}
}

// cstring truncates a NUL-terminated byte field.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
