package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, deviceRow{Key: "tmi", Online: true})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"key": "tmi"`)
	assert.Contains(t, out, `"online": true`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestPrintJSONArray(t *testing.T) {
	data := deviceRows{
		{Key: "tmi"},
		{Key: "mmk"},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, data))

	out := buf.String()
	assert.Contains(t, out, `"key": "tmi"`)
	assert.Contains(t, out, `"key": "mmk"`)
}
