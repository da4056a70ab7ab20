package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Sync     SyncConfig     `mapstructure:"sync"     validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
	Provider ProviderConfig `mapstructure:"provider" validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains the settings for bearer-token identity on the API and
// websocket surfaces.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes is how long issued access tokens stay valid.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gte=1"`
}

// QueueConfig contains the background job queue settings shared by all named
// queues.
type QueueConfig struct {
	// WorkerCount is the number of concurrent workers per queue. Kept at 1
	// for queues that talk to the provider so rate limits stay predictable.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gte=1,lte=16"`

	// PollIntervalSeconds is how often an idle worker checks for due jobs.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gte=1"`

	// MaxAttempts is the default attempt ceiling for a job before it is left
	// in a terminal failed state.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1,lte=20"`

	// BackoffBaseSeconds and BackoffCapSeconds bound the exponential retry
	// delay: base * 2^attempt, capped.
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds" validate:"required,gte=1"`
	BackoffCapSeconds  int `mapstructure:"backoff_cap_seconds"  validate:"required,gte=1"`

	// StalledAfterMinutes is the liveness threshold: a job processing for
	// longer than this is presumed abandoned and returned to pending.
	StalledAfterMinutes int `mapstructure:"stalled_after_minutes" validate:"required,gte=1"`

	// Capacity caps the pending backlog per queue; enqueue beyond it is
	// rejected.
	Capacity int `mapstructure:"capacity" validate:"required,gte=1"`

	// RetainCount and RetainDays bound how long finished jobs are kept.
	RetainCount int `mapstructure:"retain_count" validate:"required,gte=1"`
	RetainDays  int `mapstructure:"retain_days"  validate:"required,gte=1"`
}

// SyncConfig contains the event synchronization engine settings.
type SyncConfig struct {
	// MonthsBack and MonthsForward define the sync window around "now".
	MonthsBack    int `mapstructure:"months_back"    validate:"required,gte=1,lte=24"`
	MonthsForward int `mapstructure:"months_forward" validate:"required,gte=1,lte=24"`

	// MaxResults is the page size requested from the provider.
	MaxResults int `mapstructure:"max_results" validate:"required,gte=1,lte=2500"`

	// MaxPages is a defensive ceiling against runaway pagination.
	MaxPages int `mapstructure:"max_pages" validate:"required,gte=1"`

	// BatchSize is the sub-batch size for local storage writes.
	BatchSize int `mapstructure:"batch_size" validate:"required,gte=1,lte=500"`

	// DeleteCancelled controls whether events cancelled upstream are deleted
	// locally. Defaults to false: a user's local events are never silently
	// removed.
	DeleteCancelled bool `mapstructure:"delete_cancelled"`
}

// CacheConfig contains the read-through cache settings.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds" validate:"required,gte=1"`
}

// NotifyConfig contains the live-notification settings.
type NotifyConfig struct {
	// Enabled controls whether job lifecycle notifications are published to
	// the websocket hub. Subscriptions are still accepted when off; they just
	// receive nothing.
	Enabled bool `mapstructure:"enabled"`
}

// ProviderConfig contains the external calendar provider API settings.
type ProviderConfig struct {
	// BaseURL is the provider API root, e.g. https://calendar.example.com/v1.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// CalendarID is the calendar acted on for every user.
	CalendarID string `mapstructure:"calendar_id" validate:"required"`

	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gte=1"`
	MaxRetries     int `mapstructure:"max_retries"     validate:"required,gte=1,lte=10"`
}
