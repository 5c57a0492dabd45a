package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration. It is built once by Load and
// handed to constructors; nothing mutates it afterwards.
type Config struct {
	Backend    BackendConfig
	Update     UpdateConfig
	Media      MediaConfig
	OpenRouter OpenRouterConfig
	Server     ServerConfig
	Log        LogConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	S3         S3Config
}

// BackendConfig describes the search backend and the admin account.
type BackendConfig struct {
	BaseURL        string
	AdminUser      string
	AdminPassword  string
	AuthScheme     string
	RequestTimeout time.Duration
	SearchTimeout  time.Duration
}

// UpdateConfig holds the database update budgets.
type UpdateConfig struct {
	PostTimeout  time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// MediaConfig bounds comic downloads.
type MediaConfig struct {
	DownloadTimeout time.Duration
	MaxImageBytes   int64
	ThumbnailSize   int
}

// OpenRouterConfig configures the annotation service.
type OpenRouterConfig struct {
	APIKey         string
	Model          string
	URL            string
	Referer        string
	Title          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PoolTimeout    time.Duration
	RequestTimeout time.Duration
}

// ServerConfig configures the HTTP transport and command dispatch.
type ServerConfig struct {
	Port                  string
	MaxConcurrentCommands int
	SearchRate            float64
	SearchBurst           int
}

// LogConfig selects the apex/log handler and level.
type LogConfig struct {
	Level  string
	Format string
}

// KafkaConfig is optional; an empty broker list disables the Kafka transport.
type KafkaConfig struct {
	Brokers      []string
	CommandTopic string
	ReplyTopic   string
	GroupID      string
}

// Enabled reports whether brokers were configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// RedisConfig is optional; an empty address disables the explanation cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// S3Config is optional; an empty bucket disables archiving.
type S3Config struct {
	Bucket       string
	Region       string
	Profile      string
	Prefix       string
	UsePathStyle bool
}

// Enabled reports whether an archive bucket was configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_BASE_URL", DefaultAPIBaseURL)
	v.SetDefault("ADMIN_USER", DefaultAdminUser)
	v.SetDefault("ADMIN_PASSWORD", DefaultAdminPassword)
	v.SetDefault("API_AUTH_SCHEME", DefaultAuthScheme)
	v.SetDefault("API_REQUEST_TIMEOUT_SEC", DefaultAPIRequestTimeout.Seconds())
	v.SetDefault("SEARCH_TIMEOUT_SEC", DefaultSearchTimeout.Seconds())

	v.SetDefault("DB_UPDATE_POST_TIMEOUT_SEC", DefaultUpdatePostTimeout.Seconds())
	v.SetDefault("DB_UPDATE_WAIT_TIMEOUT_SEC", DefaultUpdateWaitTimeout.Seconds())
	v.SetDefault("DB_UPDATE_POLL_INTERVAL_SEC", DefaultUpdatePollInterval.Seconds())

	v.SetDefault("DOWNLOAD_TIMEOUT_SEC", DefaultDownloadTimeout.Seconds())
	v.SetDefault("MAX_IMAGE_BYTES", DefaultMaxImageBytes)
	v.SetDefault("THUMBNAIL_SIZE", DefaultThumbnailSize)

	v.SetDefault("OPENROUTER_API_KEY", "")
	v.SetDefault("OPENROUTER_MODEL", DefaultOpenRouterModel)
	v.SetDefault("OPENROUTER_API_URL", DefaultOpenRouterURL)
	v.SetDefault("OPENROUTER_REFERER", DefaultOpenRouterReferer)
	v.SetDefault("OPENROUTER_TITLE", DefaultOpenRouterTitle)
	v.SetDefault("OPENROUTER_CONNECT_TIMEOUT", DefaultOpenRouterConnectTimeout.Seconds())
	v.SetDefault("OPENROUTER_READ_TIMEOUT", DefaultOpenRouterReadTimeout.Seconds())
	v.SetDefault("OPENROUTER_WRITE_TIMEOUT", DefaultOpenRouterWriteTimeout.Seconds())
	v.SetDefault("OPENROUTER_POOL_TIMEOUT", DefaultOpenRouterPoolTimeout.Seconds())
	v.SetDefault("OPENROUTER_REQUEST_TIMEOUT_SEC", DefaultOpenRouterRequestTimeout.Seconds())

	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("MAX_CONCURRENT_COMMANDS", DefaultMaxConcurrentCommands)
	v.SetDefault("SEARCH_RATE_PER_SEC", DefaultSearchRate)
	v.SetDefault("SEARCH_BURST", DefaultSearchBurst)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_COMMAND_TOPIC", DefaultKafkaCommandTopic)
	v.SetDefault("KAFKA_REPLY_TOPIC", DefaultKafkaReplyTopic)
	v.SetDefault("KAFKA_GROUP_ID", DefaultKafkaGroupID)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASS", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EXPLANATION_CACHE_TTL_SECONDS", DefaultExplanationCacheTTL.Seconds())

	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_PROFILE", "")
	v.SetDefault("S3_PREFIX", DefaultS3Prefix)
	v.SetDefault("S3_USE_PATH_STYLE", false)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Backend: BackendConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("API_BASE_URL")), "/"),
			AdminUser:      v.GetString("ADMIN_USER"),
			AdminPassword:  v.GetString("ADMIN_PASSWORD"),
			AuthScheme:     strings.TrimSpace(v.GetString("API_AUTH_SCHEME")),
			RequestTimeout: seconds(v, "API_REQUEST_TIMEOUT_SEC"),
			SearchTimeout:  seconds(v, "SEARCH_TIMEOUT_SEC"),
		},
		Update: UpdateConfig{
			PostTimeout:  seconds(v, "DB_UPDATE_POST_TIMEOUT_SEC"),
			WaitTimeout:  seconds(v, "DB_UPDATE_WAIT_TIMEOUT_SEC"),
			PollInterval: seconds(v, "DB_UPDATE_POLL_INTERVAL_SEC"),
		},
		Media: MediaConfig{
			DownloadTimeout: seconds(v, "DOWNLOAD_TIMEOUT_SEC"),
			MaxImageBytes:   v.GetInt64("MAX_IMAGE_BYTES"),
			ThumbnailSize:   v.GetInt("THUMBNAIL_SIZE"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:         strings.TrimSpace(v.GetString("OPENROUTER_API_KEY")),
			Model:          strings.TrimSpace(v.GetString("OPENROUTER_MODEL")),
			URL:            strings.TrimSpace(v.GetString("OPENROUTER_API_URL")),
			Referer:        v.GetString("OPENROUTER_REFERER"),
			Title:          v.GetString("OPENROUTER_TITLE"),
			ConnectTimeout: seconds(v, "OPENROUTER_CONNECT_TIMEOUT"),
			ReadTimeout:    seconds(v, "OPENROUTER_READ_TIMEOUT"),
			WriteTimeout:   seconds(v, "OPENROUTER_WRITE_TIMEOUT"),
			PoolTimeout:    seconds(v, "OPENROUTER_POOL_TIMEOUT"),
			RequestTimeout: seconds(v, "OPENROUTER_REQUEST_TIMEOUT_SEC"),
		},
		Server: ServerConfig{
			Port:                  strings.TrimPrefix(strings.TrimSpace(v.GetString("PORT")), ":"),
			MaxConcurrentCommands: v.GetInt("MAX_CONCURRENT_COMMANDS"),
			SearchRate:            v.GetFloat64("SEARCH_RATE_PER_SEC"),
			SearchBurst:           v.GetInt("SEARCH_BURST"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("KAFKA_BROKERS")),
			CommandTopic: v.GetString("KAFKA_COMMAND_TOPIC"),
			ReplyTopic:   v.GetString("KAFKA_REPLY_TOPIC"),
			GroupID:      v.GetString("KAFKA_GROUP_ID"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASS"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      seconds(v, "EXPLANATION_CACHE_TTL_SECONDS"),
		},
		S3: S3Config{
			Bucket:       strings.TrimSpace(v.GetString("S3_BUCKET")),
			Region:       strings.TrimSpace(v.GetString("S3_REGION")),
			Profile:      strings.TrimSpace(v.GetString("S3_PROFILE")),
			Prefix:       strings.TrimSpace(v.GetString("S3_PREFIX")),
			UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects budgets that would make the update flow meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL must not be empty"))
	}
	if c.Update.PostTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DB_UPDATE_POST_TIMEOUT_SEC must be positive, got %s", c.Update.PostTimeout))
	}
	if c.Update.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DB_UPDATE_WAIT_TIMEOUT_SEC must be positive, got %s", c.Update.WaitTimeout))
	}
	if c.Update.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("DB_UPDATE_POLL_INTERVAL_SEC must be positive, got %s", c.Update.PollInterval))
	}
	if c.OpenRouter.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OPENROUTER_REQUEST_TIMEOUT_SEC must be positive, got %s", c.OpenRouter.RequestTimeout))
	}
	if c.Server.MaxConcurrentCommands <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_COMMANDS must be positive, got %d", c.Server.MaxConcurrentCommands))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// seconds reads a float number of seconds, so "0.5" is half a second.
func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
