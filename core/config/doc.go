// Package config provides configuration management for the backup verifier.
//
// Settings come from struct tag defaults, an optional config.yaml, a .env
// file and environment variables, in increasing precedence. Command-line
// flags are applied on top by the cmd package.
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Compare: source and backup locations, extraction mode, chunk size, workers
//   - Report: report path, mismatch detail path, append and upload
//   - Server: HTTP server settings (port, API key, concurrent runs)
//   - Storage: S3/MinIO credentials
//   - Log: logging level and format
//   - Database and History: run history persistence
//   - Metrics: Prometheus Pushgateway settings
//
// Environment keys are the upper-cased dotted path, e.g. COMPARE_CHUNK_SIZE.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Compare.Workers)
package config
