// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
		wantErr  bool
	}{
		{level: "debug", expected: zapcore.DebugLevel},
		{level: "INFO", expected: zapcore.InfoLevel},
		{level: "", expected: zapcore.InfoLevel},
		{level: "warn", expected: zapcore.WarnLevel},
		{level: "error", expected: zapcore.ErrorLevel},
		{level: "verbose", expected: zapcore.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := ParseLevel(tt.level)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.expected, level)
		})
	}
}

func TestNewJSON(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger, err := New("fhesurvey", Config{Level: "info", JSON: true}, &buf)
	require.NoError(err)

	logger.Debug("hidden")
	logger.Info("Answer submitted", "questionID", 2)

	var entry map[string]interface{}
	require.NoError(json.Unmarshal(buf.Bytes(), &entry))
	require.Equal("Answer submitted", entry["msg"])
	require.Equal("INFO", entry["level"])
}

func TestNewFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "fhesurvey.log")
	var buf bytes.Buffer
	logger, err := New("fhesurvey", Config{Level: "debug", File: path}, &buf)
	require.NoError(err)

	logger.Warn("Key cache miss")
	contents, err := os.ReadFile(path)
	require.NoError(err)
	require.Contains(string(contents), "Key cache miss")
	require.Contains(buf.String(), "Key cache miss")
}

func TestNewRejectsLevel(t *testing.T) {
	_, err := New("fhesurvey", Config{Level: "loud"}, nil)
	require.Error(t, err)
}
