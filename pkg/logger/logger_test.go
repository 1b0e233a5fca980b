package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestWithProfileAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: zerolog.New(&buf)}

	l.WithComponent("detector").WithProfile("Instagram", "beauty_studio").Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"component":"detector"`)
	assert.Contains(t, out, `"platform":"Instagram"`)
	assert.Contains(t, out, `"profile_name":"beauty_studio"`)
}

func TestNewNopDiscards(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.WithPlatform("TikTok").Error().Msg("dropped")
	})
}

func TestNewWritesToFile(t *testing.T) {
	path := t.TempDir() + "/detection.log"
	l := New(Config{Level: "info", Format: "json", File: path})
	l.Info().Str("platform", "Website").Msg("written")
	assert.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"platform":"Website"`)
}
