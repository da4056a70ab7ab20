package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables use the CALSYNC_ prefix with underscores, e.g.
	// CALSYNC_DATABASE_URL, CALSYNC_QUEUE_MAX_ATTEMPTS.
	v.SetEnvPrefix("CALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Required settings get empty defaults so viper binds their environment
	// variables; validation rejects them when left unset.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.calendar_id", "primary")
	v.SetDefault("provider.timeout_seconds", 20)
	v.SetDefault("provider.max_retries", 3)

	v.SetDefault("queue.worker_count", 1)
	v.SetDefault("queue.poll_interval_seconds", 1)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.backoff_base_seconds", 30)
	v.SetDefault("queue.backoff_cap_seconds", 900)
	v.SetDefault("queue.stalled_after_minutes", 30)
	v.SetDefault("queue.capacity", 1000)
	v.SetDefault("queue.retain_count", 1000)
	v.SetDefault("queue.retain_days", 7)

	v.SetDefault("sync.months_back", 3)
	v.SetDefault("sync.months_forward", 6)
	v.SetDefault("sync.max_results", 100)
	v.SetDefault("sync.max_pages", 50)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.delete_cancelled", false)

	v.SetDefault("cache.ttl_seconds", 300)

	v.SetDefault("notify.enabled", true)
}
