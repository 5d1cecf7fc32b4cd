package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	rows := deviceRows{
		{Key: "tmi", Online: true},
		{Key: "outsourcing", Online: false},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, rows))

	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "ONLINE")
	assert.Contains(t, out, "tmi")
	assert.Contains(t, out, "outsourcing")
}

func TestSimpleTable(t *testing.T) {
	pairs := [][2]string{
		{"API host", "0.0.0.0"},
		{"API port", "8000"},
	}

	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, pairs))

	out := buf.String()
	assert.Contains(t, out, "API host")
	assert.Contains(t, out, "8000")
}
