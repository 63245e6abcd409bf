package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration for the order API.
// Values are read from the environment once at startup and passed down
// explicitly; nothing in the codebase reads the environment after that.
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Env   string `envconfig:"ENV" default:"development"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DBPath    string `envconfig:"DB_PATH" default:"polycopy.db"`
	JWTSecret string `envconfig:"JWT_SECRET" default:"polycopy-secret-key"`

	ClobBaseURL    string `envconfig:"CLOB_BASE_URL" default:"https://clob.polymarket.com"`
	CustodyBaseURL string `envconfig:"CUSTODY_BASE_URL" default:"http://localhost:9090"`
	CustodyAPIKey  string `envconfig:"CUSTODY_API_KEY"`

	// ProxyURL is the outbound proxy all exchange traffic must go through.
	// When empty the submitter refuses to submit rather than hit the
	// exchange directly.
	ProxyURL string `envconfig:"OUTBOUND_PROXY_URL"`

	// SubmitTimeout bounds the exchange order-post call. A timeout is
	// surfaced as a network error, not an exchange rejection.
	SubmitTimeout time.Duration `envconfig:"SUBMIT_TIMEOUT" default:"10s"`

	// IdempotencyFailOpen controls what happens when the idempotency
	// check itself fails: true lets the order proceed unguarded (favouring
	// availability), false rejects the request. Product decision, so it is
	// configurable rather than baked in.
	IdempotencyFailOpen bool `envconfig:"IDEMPOTENCY_FAIL_OPEN" default:"true"`

	DefaultTickSize float64 `envconfig:"DEFAULT_TICK_SIZE" default:"0.01"`

	BackfillInterval      time.Duration `envconfig:"BACKFILL_INTERVAL" default:"1m"`
	RefreshCoalesceWindow time.Duration `envconfig:"REFRESH_COALESCE_WINDOW" default:"5s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env config: %w", err)
	}
	return &cfg, nil
}
