package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, deviceRow{Key: "tmi", Online: true})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "key: tmi")
	assert.Contains(t, out, "online: true")
}

func TestPrintYAMLArray(t *testing.T) {
	data := deviceRows{
		{Key: "tmi"},
		{Key: "mmk"},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, data))

	out := buf.String()
	assert.Contains(t, out, "- key: tmi")
	assert.Contains(t, out, "- key: mmk")
}
