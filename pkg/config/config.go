package config

import (
	"fmt"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// DefaultFiles are the config files looked up in the working directory
var DefaultFiles = []string{"./feedhub.hcl", "./feedhub.local.hcl"}

// Config holds the service configuration
type Config struct {
	ListenAddr        string        `hcl:"listen_addr" env:"LISTEN_ADDR" default:"0.0.0.0:8080"`
	SubscriptionsPath string        `hcl:"subscriptions_path" env:"SUBSCRIPTIONS_PATH" default:"public/rss.opml"`
	AllowedOrigin     string        `hcl:"allowed_origin" env:"ALLOWED_ORIGIN" default:"http://localhost:4321"`
	MaxConcurrent     int           `hcl:"max_concurrent" env:"MAX_CONCURRENT" default:"10"`
	Window            time.Duration `hcl:"window" env:"WINDOW" default:"120h"`
	FetchTimeout      time.Duration `hcl:"fetch_timeout" env:"FETCH_TIMEOUT" default:"20s"`
	MaxBodyBytes      int64         `hcl:"max_body_bytes" env:"MAX_BODY_BYTES" default:"10485760"`
	UserAgent         string        `hcl:"user_agent" env:"USER_AGENT" default:"feedhub/1.0 (+https://github.com/feedhub)"`
	SanitizeHTML      bool          `hcl:"sanitize_html" env:"SANITIZE_HTML" default:"false"`
	PlainDescription  bool          `hcl:"plain_description" env:"PLAIN_DESCRIPTION" default:"false"`
	FillMissing       bool          `hcl:"fill_missing" env:"FILL_MISSING" default:"false"`
	LogLevel          string        `hcl:"log_level" env:"LOG_LEVEL" default:"info"`
	LogFile           string        `hcl:"log_file" env:"LOG_FILE"`
}

// Load reads configuration from defaults, the given HCL files and FEEDHUB_* env vars.
// Missing files are skipped.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FEEDHUB",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that would make the aggregator unusable
func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be > 0, got %d", c.MaxConcurrent)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be > 0, got %s", c.Window)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must be >= 0, got %s", c.FetchTimeout)
	}
	if c.SubscriptionsPath == "" {
		return fmt.Errorf("subscriptions_path is required")
	}
	return nil
}
