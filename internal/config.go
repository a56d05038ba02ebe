package internal

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH,default=./data/bluge" validate:"required"`
	IPCHost         string        `env:"IPC_HOST,default=127.0.0.1" validate:"required"`
	IPCPort         int           `env:"IPC_PORT,default=7878" validate:"min=0,max=65535"`
	IPCTokenSecret  string        `env:"IPC_TOKEN_SECRET" validate:"omitempty,min=32"`
	KeyPassphrase   string        `env:"KEY_PASSPHRASE"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	EventBufferSize int           `env:"EVENT_BUFFER_SIZE,default=64" validate:"gt=0"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=30s" validate:"gt=0"`
	// DebugPort enables the store inspector on loopback when not zero.
	DebugPort int `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c Config) IPCAddr() string {
	return net.JoinHostPort(c.IPCHost, strconv.Itoa(c.IPCPort))
}

func (c Config) DebugAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(c.DebugPort))
}
