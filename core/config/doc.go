// Package config provides configuration management for the calendar
// bridge.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Source: ICS feed URL, timeout, retries, user agent
//   - Processing: timezone, summary prefix, description suffix and cap
//   - Google: destination calendar id and credential file locations
//   - Sync: window bounds, interval, cool-down, delete gate, status port
//   - Log: logging level and format
//   - Database: state database driver and location
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Source.URL)
package config
