package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_TYPING_TIMEOUT shortens the client inactivity countdown so the
	// auto-stop path is observable within a test run
	TypingTimeout time.Duration `envconfig:"E2E_TYPING_TIMEOUT" default:"300ms"`
	StepTimeout   time.Duration `envconfig:"E2E_STEP_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
