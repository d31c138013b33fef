// Package database handles connections to the sync state database.
//
// It provides a wrapper around GORM that configures the right driver
// from the application's configuration. sqlite is the default and the
// recommended deployment: the whole sync state lives in one file next
// to the tool. mysql is supported for setups that already run one.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
