package zk

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// transport frames command packets over a TCP connection. Every exchange
// refreshes the connection deadline so a hung terminal cannot stall a
// session past device.SessionTimeout.
type transport struct {
	conn    net.Conn
	timeout time.Duration
}

func (t *transport) send(frame []byte) error {
	if err := t.conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return err
	}
	buf := make([]byte, 8+len(frame))
	binary.LittleEndian.PutUint32(buf[0:], tcpMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(frame)))
	copy(buf[8:], frame)
	_, err := t.conn.Write(buf)
	return err
}

func (t *transport) recv() (packet, error) {
	if err := t.conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return packet{}, err
	}
	var hdr [8]byte
	if _, err := io.ReadFull(t.conn, hdr[:]); err != nil {
		return packet{}, err
	}
	if magic := binary.LittleEndian.Uint32(hdr[0:]); magic != tcpMagic {
		return packet{}, fmt.Errorf("bad transport magic %#x", magic)
	}
	size := binary.LittleEndian.Uint32(hdr[4:])
	if size < headerSize || size > 1<<20 {
		return packet{}, fmt.Errorf("bad frame size %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return packet{}, err
	}
	return decodeFrame(buf)
}

func (t *transport) close() error {
	return t.conn.Close()
}
