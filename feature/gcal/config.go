package gcal

// Config holds configuration for the destination Google Calendar.
type Config struct {
	// CalendarID is the target calendar ("primary" or a calendar address).
	CalendarID string `mapstructure:"calendar_id" default:"primary"`
	// CredentialsFile is the OAuth client secret JSON.
	CredentialsFile string `mapstructure:"credentials_file" default:"config/credentials.json"`
	// TokenFile holds the user token obtained from the consent flow.
	TokenFile string `mapstructure:"token_file" default:"config/token.json"`
}
