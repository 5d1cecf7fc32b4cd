package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fleetYAML = `
devices:
  tmi:
    name: TMI Office
    ip: 10.0.0.11
    port: 4370
    password: 1234
  mmk:
    name: MMK Factory
    ip: 10.0.0.12
  office:
    ip: 10.0.0.13
    port: 4371
`

func TestParseFleetPreservesOrder(t *testing.T) {
	p, err := parseFleet([]byte(fleetYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmi", "mmk", "office"}, p.Keys())
}

func TestParseFleetDefaults(t *testing.T) {
	p, err := parseFleet([]byte(fleetYAML), nil)
	require.NoError(t, err)

	tmi, err := p.Config("tmi")
	require.NoError(t, err)
	assert.Equal(t, "TMI Office", tmi.Name)
	assert.Equal(t, 1234, tmi.Password)
	assert.Equal(t, "10.0.0.11:4370", tmi.Addr())

	// Missing port falls back to the well-known device port.
	mmk, err := p.Config("mmk")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, mmk.Port)

	// Missing name falls back to the key.
	office, err := p.Config("office")
	require.NoError(t, err)
	assert.Equal(t, "office", office.Name)
	assert.Equal(t, "10.0.0.13:4371", office.Addr())
}

func TestParseFleetMissingIP(t *testing.T) {
	_, err := parseFleet([]byte("devices:\n  broken:\n    port: 4370\n"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "broken")
}

func TestParseFleetEmpty(t *testing.T) {
	p, err := parseFleet([]byte(""), nil)
	require.NoError(t, err)
	assert.Empty(t, p.Keys())
}

func TestParseFleetRejectsNonMapping(t *testing.T) {
	_, err := parseFleet([]byte("devices:\n  - tmi\n"), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPoolUnknownDevice(t *testing.T) {
	p, err := parseFleet([]byte(fleetYAML), nil)
	require.NoError(t, err)

	_, err = p.Config("nope")
	assert.ErrorIs(t, err, ErrUnknownDevice)

	_, err = p.Client("nope")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestPoolClientIsStable(t *testing.T) {
	p, err := parseFleet([]byte(fleetYAML), nil)
	require.NoError(t, err)

	a, err := p.Client("tmi")
	require.NoError(t, err)
	b, err := p.Client("tmi")
	require.NoError(t, err)

	// Same slot both times, so the per-device lock actually serializes.
	assert.Same(t, a, b)

	other, err := p.Client("mmk")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestNewPoolMissingFile(t *testing.T) {
	_, err := NewPool("testdata/does-not-exist.yml", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
