package env_mode

import (
	"os"
	"strings"
	"sync"
)

// ENV_MODE_KEY selects which config overlays are loaded.
const ENV_MODE_KEY = "RECIPEMEDIA_ENV"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

var (
	currentEnv ENV_MODE
	modeMu     sync.RWMutex
)

func ParseEnv(env string) ENV_MODE {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the active mode, reading the environment on first use.
func Mode() ENV_MODE {
	modeMu.RLock()
	env := currentEnv
	modeMu.RUnlock()
	if env != "" {
		return env
	}

	modeMu.Lock()
	defer modeMu.Unlock()
	if currentEnv == "" {
		currentEnv = ParseEnv(os.Getenv(ENV_MODE_KEY))
	}
	return currentEnv
}

// SetMode overrides the active mode for this process.
func SetMode(mode ENV_MODE) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentEnv = mode
}
