package zk

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := encodeFrame(cmdConnect, 0x1234, 0xfffe, payload)

	pkt, err := decodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(cmdConnect), pkt.command)
	assert.Equal(t, uint16(0x1234), pkt.session)
	assert.Equal(t, uint16(0xfffe), pkt.reply)
	assert.Equal(t, payload, pkt.payload)
}

func TestDecodeFrameShort(t *testing.T) {
	_, err := decodeFrame([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestChecksumVerifies(t *testing.T) {
	buf := encodeFrame(cmdGetTime, 7, 1, nil)

	// Re-computing over the frame with the stored checksum zeroed must
	// reproduce the stored value.
	stored := binary.LittleEndian.Uint16(buf[2:])
	binary.LittleEndian.PutUint16(buf[2:], 0)
	assert.Equal(t, stored, checksum(buf))
}

func TestTimeRoundTrip(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local),
		time.Date(2025, time.June, 30, 23, 59, 59, 0, time.Local),
		time.Date(2031, time.December, 31, 8, 15, 42, 0, time.Local),
	} {
		assert.Equal(t, ts, decodeTime(encodeTime(ts)), "time %s", ts)
	}
}

func TestMakeCommKeyDependsOnSession(t *testing.T) {
	k1 := makeCommKey(1234, 100)
	k2 := makeCommKey(1234, 101)
	k3 := makeCommKey(1234, 100)

	require.Len(t, k1, 4)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, k3)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "abc", cstring([]byte{'a', 'b', 'c', 0, 'x'}))
	assert.Equal(t, "abc", cstring([]byte("abc")))
	assert.Equal(t, "", cstring([]byte{0}))
}
