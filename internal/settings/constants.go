package settings

// DB config keys and defaults for runtime settings.
const (
	// SiteNameKey is the DB config key for the dashboard site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback dashboard site name.
	DefaultSiteName = "Flash Invite"

	// PlatformBotTokenKey stores the platform's primary bot token.
	PlatformBotTokenKey = "PLATFORM_BOT_TOKEN"
	// PlatformBotUsernameKey stores the platform's primary bot username.
	PlatformBotUsernameKey = "PLATFORM_BOT_USERNAME"

	// HealthPollIntervalSecondsKey controls the bot fleet health poll interval.
	HealthPollIntervalSecondsKey = "HEALTH_POLL_INTERVAL_SECONDS"
	// HealthPollMaxConcurrencyKey controls max concurrent health probes.
	HealthPollMaxConcurrencyKey = "HEALTH_POLL_MAX_CONCURRENCY"
	// BroadcastRatePerSecondKey controls the broadcast send rate limit.
	BroadcastRatePerSecondKey = "BROADCAST_RATE_PER_SECOND"

	// DefaultHealthPollIntervalSeconds is the fallback poll interval.
	DefaultHealthPollIntervalSeconds = 30
	// DefaultHealthPollMaxConcurrency is the fallback probe concurrency.
	DefaultHealthPollMaxConcurrency = 5
	// DefaultBroadcastRatePerSecond stays under Telegram's bulk-send ceiling.
	DefaultBroadcastRatePerSecond = 25
)
