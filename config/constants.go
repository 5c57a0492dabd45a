package config

import "time"

// Backend Constants
const (
	// DefaultAPIBaseURL is the search backend address inside the compose network
	DefaultAPIBaseURL = "http://api:8080"

	// DefaultAdminUser is the login used to authorize database updates
	DefaultAdminUser = "admin"

	// DefaultAdminPassword is the password paired with DefaultAdminUser
	DefaultAdminPassword = "password"

	// DefaultAuthScheme prefixes the token in the Authorization header
	DefaultAuthScheme = "Token"

	// DefaultAPIRequestTimeout bounds ping, login, status and stats calls
	DefaultAPIRequestTimeout = 15 * time.Second

	// DefaultSearchTimeout bounds the indexed search call
	DefaultSearchTimeout = 30 * time.Second
)

// Database Update Constants
const (
	// DefaultUpdatePostTimeout bounds the trigger request itself
	DefaultUpdatePostTimeout = 60 * time.Second

	// DefaultUpdateWaitTimeout bounds the whole polling phase
	DefaultUpdateWaitTimeout = 300 * time.Second

	// DefaultUpdatePollInterval is the constant sleep between status checks
	DefaultUpdatePollInterval = 2 * time.Second
)

// Media Constants
const (
	// DefaultDownloadTimeout bounds the comic image download
	DefaultDownloadTimeout = 30 * time.Second

	// DefaultMaxImageBytes caps the size of a downloaded image (20 MiB)
	DefaultMaxImageBytes = 20 << 20

	// DefaultThumbnailSize is the bounding box of archived thumbnails in pixels
	DefaultThumbnailSize = 320
)

// OpenRouter Constants
const (
	// DefaultOpenRouterModel is a vision-capable chat model
	DefaultOpenRouterModel = "openai/gpt-5"

	// DefaultOpenRouterURL is the chat completions endpoint
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultOpenRouterReferer is sent as HTTP-Referer for OpenRouter attribution
	DefaultOpenRouterReferer = "https://github.com/iiputilo/openrouter_tg_bot"

	// DefaultOpenRouterTitle is sent as X-Title for OpenRouter attribution
	DefaultOpenRouterTitle = "openrouter_tg_bot"

	// Per-phase OpenRouter timeouts. Pool bounds the wait for a free connection.
	DefaultOpenRouterConnectTimeout = 30 * time.Second
	DefaultOpenRouterReadTimeout    = 300 * time.Second
	DefaultOpenRouterWriteTimeout   = 60 * time.Second
	DefaultOpenRouterPoolTimeout    = 60 * time.Second

	// DefaultOpenRouterRequestTimeout is the outer deadline around one annotation
	DefaultOpenRouterRequestTimeout = 120 * time.Second
)

// Server Constants
const (
	// DefaultPort is the HTTP command transport port
	DefaultPort = "8090"

	// DefaultMaxConcurrentCommands limits commands processed at once from Kafka
	DefaultMaxConcurrentCommands = 8

	// DefaultSearchRate is the steady /search rate per second (0 disables limiting)
	DefaultSearchRate = 1.0

	// DefaultSearchBurst is the number of /search commands allowed at once
	DefaultSearchBurst = 3

	// ShutdownGracePeriod is how long in-flight HTTP requests get on shutdown
	ShutdownGracePeriod = 10 * time.Second
)

// Kafka Constants
const (
	DefaultKafkaCommandTopic = "bot.commands"
	DefaultKafkaReplyTopic   = "bot.replies"
	DefaultKafkaGroupID      = "comicbot"
)

// Storage Constants
const (
	// DefaultS3Prefix is prepended to archived object keys
	DefaultS3Prefix = "comics/"

	// DefaultExplanationCacheTTL is how long an explanation stays in redis
	DefaultExplanationCacheTTL = 24 * time.Hour
)
