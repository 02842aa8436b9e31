// Package config loads the migration settings from a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/Martian-dev/pst-migrate/internal/retry"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

// LogConfig holds logging preferences.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// StatusAuthConfig protects the status endpoint with bearer tokens. Leaving
// both fields empty keeps /status open.
type StatusAuthConfig struct {
	// JWKSURL defaults to the signing keys of the tenant when only
	// Audience is set.
	JWKSURL  string `mapstructure:"jwks_url" yaml:"jwks_url"`
	Audience string `mapstructure:"audience" yaml:"audience"`
}

// Enabled reports whether status requests must be authenticated.
func (s StatusAuthConfig) Enabled() bool {
	return s.JWKSURL != "" || s.Audience != ""
}

// Config is the complete runtime configuration.
type Config struct {
	TenantID      string `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID      string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret  string `mapstructure:"client_secret" yaml:"client_secret"`
	TargetMailbox string `mapstructure:"target_mailbox" yaml:"target_mailbox"`
	SourcePath    string `mapstructure:"source_path" yaml:"source_path"`

	SkipFolders               []string `mapstructure:"skip_folders" yaml:"skip_folders"`
	SupportedItemClasses      []string `mapstructure:"supported_item_classes" yaml:"supported_item_classes"`
	SupportedFolderClasses    []string `mapstructure:"supported_folder_classes" yaml:"supported_folder_classes"`
	DefaultContactFolderNames []string `mapstructure:"default_contact_folder_names" yaml:"default_contact_folder_names"`
	DefaultCalendarNames      []string `mapstructure:"default_calendar_names" yaml:"default_calendar_names"`

	// Timezone is the IANA zone used to recognize all-day appointments.
	// Empty means the local zone.
	Timezone                       string `mapstructure:"timezone" yaml:"timezone"`
	BestEffortCreateOnCheckFailure bool   `mapstructure:"best_effort_create_on_check_failure" yaml:"best_effort_create_on_check_failure"`

	Retry    retry.BackoffConfig `mapstructure:"retry" yaml:"retry"`
	PageSize int32               `mapstructure:"page_size" yaml:"page_size"`
	Log      LogConfig           `mapstructure:"log" yaml:"log"`

	// JournalPath is the sqlite run journal. Empty disables it.
	JournalPath string `mapstructure:"journal_path" yaml:"journal_path"`
	// NatsURL enables publishing progress events when set.
	NatsURL string `mapstructure:"nats_url" yaml:"nats_url"`
	// StatusAddr enables the HTTP status endpoint when set, e.g. ":8080".
	StatusAddr      string           `mapstructure:"status_addr" yaml:"status_addr"`
	StatusAuth      StatusAuthConfig `mapstructure:"status_auth" yaml:"status_auth"`
	MessageIDDomain string           `mapstructure:"message_id_domain" yaml:"message_id_domain"`
}

// envNames maps keys to the variable names used by existing deployments.
var envNames = map[string]string{
	"tenant_id":      "TENANT_ID",
	"client_id":      "CLIENT_ID",
	"client_secret":  "CLIENT_SECRET",
	"target_mailbox": "TARGET_MAILBOX",
	"source_path":    "PST_FILE",
}

// SetDefaults registers every key with its default value so environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	opts := sync.DefaultOptions()
	backoff := retry.DefaultBackoffConfig()

	for key := range envNames {
		v.SetDefault(key, "")
	}
	v.SetDefault("skip_folders", opts.SkipFolders)
	v.SetDefault("supported_item_classes", opts.SupportedItemClasses)
	v.SetDefault("supported_folder_classes", opts.SupportedFolderClasses)
	v.SetDefault("default_contact_folder_names", opts.DefaultContactFolderNames)
	v.SetDefault("default_calendar_names", opts.DefaultCalendarNames)
	v.SetDefault("timezone", "")
	v.SetDefault("best_effort_create_on_check_failure", opts.BestEffortCreateOnCheckFailure)
	v.SetDefault("retry.initial_interval", backoff.InitialInterval)
	v.SetDefault("retry.max_interval", backoff.MaxInterval)
	v.SetDefault("retry.multiplier", backoff.Multiplier)
	v.SetDefault("retry.jitter", backoff.Jitter)
	v.SetDefault("retry.max_retries", backoff.MaxRetries)
	v.SetDefault("page_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("journal_path", "pst-migrate.db")
	v.SetDefault("nats_url", "")
	v.SetDefault("status_addr", "")
	v.SetDefault("status_auth.jwks_url", "")
	v.SetDefault("status_auth.audience", "")
	v.SetDefault("message_id_domain", "pst-migrate.local")
}

// Load reads path (optional) into v and decodes the result. Values are
// resolved in the order flag, environment, file, default. A missing file is
// only an error when path was given explicitly.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks that everything a migration pass needs is present.
func (c *Config) Validate() error {
	if err := c.require(
		setting{"tenant_id", c.TenantID},
		setting{"client_id", c.ClientID},
		setting{"client_secret", c.ClientSecret},
		setting{"target_mailbox", c.TargetMailbox},
		setting{"source_path", c.SourcePath},
	); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ValidateDestination checks only what talking to the mailbox needs.
func (c *Config) ValidateDestination() error {
	return c.require(
		setting{"tenant_id", c.TenantID},
		setting{"client_id", c.ClientID},
		setting{"client_secret", c.ClientSecret},
		setting{"target_mailbox", c.TargetMailbox},
	)
}

type setting struct {
	key, value string
}

func (c *Config) require(settings ...setting) error {
	var missing []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			missing = append(missing, s.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SyncOptions converts the engine settings.
func (c *Config) SyncOptions() (sync.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return sync.Options{}, err
	}
	return sync.Options{
		SkipFolders:                    c.SkipFolders,
		SupportedItemClasses:           c.SupportedItemClasses,
		SupportedFolderClasses:         c.SupportedFolderClasses,
		DefaultContactFolderNames:      c.DefaultContactFolderNames,
		DefaultCalendarNames:           c.DefaultCalendarNames,
		Location:                       loc,
		BestEffortCreateOnCheckFailure: c.BestEffortCreateOnCheckFailure,
	}, nil
}
