package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/go-core-fx/config"
)

const MaxSuggestionLimit = 10

var ErrMissingServiceURL = errors.New("service url is required")

type Config struct {
	ServiceURL      string        `koanf:"service_url"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SAPClient       string        `koanf:"sap_client"`
	Timeout         time.Duration `koanf:"timeout"`
	PageSize        int           `koanf:"page_size"`
	SuggestionLimit int           `koanf:"suggestion_limit"`
	DefinitionsFile string        `koanf:"definitions_file"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	LogFile         string        `koanf:"log_file"`
	Debug           bool          `koanf:"debug"`
}

func Default() Config {
	return Config{
		Timeout:         20 * time.Second,
		PageSize:        100,
		SuggestionLimit: MaxSuggestionLimit,
		LogFile:         "./doclookup.log",
		Debug:           false,
	}
}

func New() (Config, error) {
	cfg := Default()

	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	cfg.ServiceURL = strings.TrimRight(strings.TrimSpace(cfg.ServiceURL), "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first setting that would make lookups impossible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceURL) == "" {
		return ErrMissingServiceURL
	}
	u, err := url.Parse(c.ServiceURL)
	if err != nil {
		return fmt.Errorf("invalid service_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service_url must be http or https, got %q", c.ServiceURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.SuggestionLimit <= 0 || c.SuggestionLimit > MaxSuggestionLimit {
		return fmt.Errorf("suggestion_limit must be between 1 and %d, got %d", MaxSuggestionLimit, c.SuggestionLimit)
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("password is set without username")
	}
	return nil
}
