package feed

// Config holds configuration for the source ICS feed.
type Config struct {
	// URL is the ICS endpoint.
	URL string `mapstructure:"url" default:""`
	// TimeoutSeconds bounds each fetch attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// RetryCount is how many attempts are made before giving up.
	RetryCount int `mapstructure:"retry_count" default:"3"`
	// UserAgent is sent with every fetch request.
	UserAgent string `mapstructure:"user_agent" default:"calbridge/1.0"`
}

// ProcessingConfig shapes event content before it is pushed.
type ProcessingConfig struct {
	// Timezone interprets floating and date-only times in the feed.
	Timezone string `mapstructure:"timezone" default:"UTC"`
	// EventPrefix is prepended to every summary, marking synced events.
	EventPrefix string `mapstructure:"event_prefix" default:""`
	// DescriptionSuffix is appended to every description.
	DescriptionSuffix string `mapstructure:"description_suffix" default:""`
	// MaxDescriptionLength truncates oversized descriptions.
	MaxDescriptionLength int `mapstructure:"max_description_length" default:"8000"`
}
