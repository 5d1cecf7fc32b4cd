package device_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/device/devicetest"
)

func testSlot(t *testing.T) (*device.Slot, *devicetest.Device) {
	t.Helper()
	dialer := devicetest.NewDialer()
	cfg := device.Config{Key: "tmi", Name: "TMI", IP: "10.0.0.11", Port: device.DefaultPort}
	return device.NewSlot(cfg, dialer), dialer.Device("tmi")
}

func TestWithDisconnectsOnSuccess(t *testing.T) {
	slot, dev := testSlot(t)

	err := slot.With(context.Background(), func(s device.Session) error {
		_, err := s.GetUsers()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dial", "GetUsers", "Disconnect"}, dev.CallNames())
}

func TestWithDisconnectsOnCallbackError(t *testing.T) {
	slot, dev := testSlot(t)

	boom := errors.New("boom")
	err := slot.With(context.Background(), func(device.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Dial", "Disconnect"}, dev.CallNames())
}

func TestWithDialFailure(t *testing.T) {
	slot, dev := testSlot(t)
	dev.DialErr = errors.New("connection refused")

	called := false
	err := slot.With(context.Background(), func(device.Session) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "tmi")
}

func TestWithSerializesAccess(t *testing.T) {
	slot, dev := testSlot(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = slot.With(context.Background(), func(s device.Session) error {
				_, err := s.ReadSizes()
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, dev.DialCount)
	assert.Equal(t, 1, dev.MaxOpenSessions(),
		"two sessions must never be open on one device at once")
}

func TestWithWriteGuardsWrites(t *testing.T) {
	slot, dev := testSlot(t)

	err := slot.WithWrite(context.Background(), func(s device.Session) error {
		return s.SetUser(device.User{UID: 1, UserID: "100", Name: "Aung Aung"})
	})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"Dial", "DisableDevice", "SetUser", "EnableDevice", "Disconnect"},
		dev.CallNames())
	assert.False(t, dev.Disabled)
}

func TestWithWriteReenablesOnError(t *testing.T) {
	slot, dev := testSlot(t)

	boom := errors.New("write rejected")
	err := slot.WithWrite(context.Background(), func(s device.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, dev.CallNames(), "EnableDevice")
}

func TestWithWriteEnableFailureNotPropagated(t *testing.T) {
	slot, dev := testSlot(t)
	dev.EnableErr = errors.New("enable timed out")

	err := slot.WithWrite(context.Background(), func(device.Session) error { return nil })
	assert.NoError(t, err)
}

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	slot, dev := testSlot(t)
	dev.FailDials = 2

	err := slot.WithRetry(context.Background(), func(s device.Session) error {
		_, err := s.GetAttendance()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dev.DialCount)
}

func TestWithRetryGivesUpAfterThreeAttempts(t *testing.T) {
	slot, dev := testSlot(t)
	dev.FailDials = 100

	err := slot.WithRetry(context.Background(), func(device.Session) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrOffline)
	assert.Equal(t, 3, dev.DialCount)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	slot, dev := testSlot(t)

	boom := errors.New("template checksum mismatch")
	err := slot.WithRetry(context.Background(), func(device.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, dev.DialCount)
}

func TestWithRetryRetriesMidSessionTransportFailure(t *testing.T) {
	slot, dev := testSlot(t)
	dev.FailReads = 1

	err := slot.WithRetry(context.Background(), func(s device.Session) error {
		_, err := s.GetUsers()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, dev.DialCount)
}
