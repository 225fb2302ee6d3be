package verifier

import (
	"strings"
	"time"

	"formproof/pkg/validation"
)

const defaultTimeout = 10 * time.Second

// Config is the verifier connection, built once at startup and passed in.
type Config struct {
	BaseURL         string        `env:"VERIFIER_BASE_URL" validate:"required,url"`
	APIKey          string        `env:"VERIFIER_API_KEY" validate:"notblank"`
	LOBID           string        `env:"VERIFIER_LOB_ID" validate:"notblank"`
	FallbackBaseURL string        `env:"VERIFIER_FALLBACK_BASE_URL" validate:"omitempty,url"`
	Timeout         time.Duration `env:"VERIFIER_TIMEOUT"`
}

// Validate reports missing or malformed settings as CodeConfiguration.
func (c Config) Validate() error {
	return validation.ValidateConfig(c)
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.FallbackBaseURL = strings.TrimRight(c.FallbackBaseURL, "/")
	if c.FallbackBaseURL == "" {
		c.FallbackBaseURL = c.BaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
