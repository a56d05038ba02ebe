package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// IPC_URL targets a running daemon, e.g. ws://127.0.0.1:7878/ipc. When
	// empty each scenario starts its own daemons in process.
	IPCURL   string `envconfig:"IPC_URL"`
	IPCToken string `envconfig:"IPC_TOKEN"`
	// E2E_DEBUG_JSON dumps every command result as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
