package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewWithOutput(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
	}{
		{"debug level emits debug lines", "debug", true},
		{"info level suppresses debug lines", "info", false},
		{"empty level defaults to info", "", false},
		{"unknown level defaults to info", "chatty", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithOutput("keyticket", tt.level, &buf)
			log.Debug("debug message")
			log.WithField("stream_id", "s1").Info("info message")

			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			if tt.wantDebug {
				require.Len(t, lines, 2)
			} else {
				require.Len(t, lines, 1)
			}

			var entry map[string]interface{}
			err := json.Unmarshal(lines[len(lines)-1], &entry)
			assert.NoError(t, err)
			assert.Equal(t, "keyticket", entry["service"])
			assert.Equal(t, "s1", entry["stream_id"])
			assert.Equal(t, "info message", entry["msg"])
		})
	}
}
