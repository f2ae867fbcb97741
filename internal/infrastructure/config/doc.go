// Package config handles loading and validating database core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Pool passwords and tokens should be set via environment variables
//     (DBCORE_POOL_<NAME>_PASS, DBCORE_INFLUXDB_TOKEN, DBCORE_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Example configuration:
//
//	pools:
//	  main:
//	    conn:
//	      url: "postgres://db.internal:5432/app?sslmode=disable"
//	      user: "app"
//	      max: 20
//	  local:
//	    conn:
//	      driver: "sqlite3"
//	      url: "./data/local.db"
//	      max: 1
//	statements:
//	  slow_warn_ms: 500
//
// Usage:
//
//	cfg, err := config.Load("configs/dbcore.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr := pool.NewManager(cfg.Pools)
package config
