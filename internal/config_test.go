package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", "/tmp/peerchat")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("INFO", config.LogLevel)
	req.Equal("./data/bluge", config.BlugeFilepath)
	req.Equal("127.0.0.1:7878", config.IPCAddr())
	req.Equal(2*time.Second, config.SinkTimeout)
	req.Equal(200*time.Millisecond, config.RestartInterval)
	req.Equal(64, config.EventBufferSize)
	req.Equal(30*time.Second, config.HealthInterval)
	req.Zero(config.DebugPort)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Missing badger path", map[string]string{}},
		{"Unknown log level", map[string]string{"BADGER_FILEPATH": "/tmp/p", "LOG_LEVEL": "LOUD"}},
		{"Short token secret", map[string]string{"BADGER_FILEPATH": "/tmp/p", "IPC_TOKEN_SECRET": "short"}},
		{"Port out of range", map[string]string{"BADGER_FILEPATH": "/tmp/p", "IPC_PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BADGER_FILEPATH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
