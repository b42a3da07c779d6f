package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := []struct {
		level, format string
		wantErr       bool
		enabled       zapcore.Level
	}{
		{level: "info", format: "json", enabled: zapcore.InfoLevel},
		{level: "debug", format: "console", enabled: zapcore.DebugLevel},
		{level: "warn", format: "", enabled: zapcore.WarnLevel},
		{level: "loud", format: "json", wantErr: true},
		{level: "info", format: "xml", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.level+"/"+tc.format, func(t *testing.T) {
			log, err := New(tc.level, tc.format)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tc.enabled))
			assert.False(t, log.Core().Enabled(tc.enabled-1))
		})
	}
}
