// Package config loads typed configuration structs from environment
// variables and optional .env files.
//
// It combines github.com/joho/godotenv (file loading) with
// github.com/caarlos0/env/v11 (struct parsing). Each struct type is parsed
// once and cached for the lifetime of the process.
//
// # Usage
//
//	if err := config.LoadEnv("/etc/mailqueue/env"); err != nil {
//	    return err
//	}
//
//	var qc mailqueue.Config
//	if err := config.Load(&qc); err != nil {
//	    return err
//	}
//
//	// same struct type, different variables: FALLBACK_MAILQUEUE_PATH, ...
//	var fallback mailqueue.Config
//	err := config.Load(&fallback, config.WithPrefix("FALLBACK_"))
//
// Any type implementing encoding.TextUnmarshaler (for example
// mailqueue.FailedRetryPolicy) can be used as a field type.
//
// # Testing
//
// ResetCache clears the cache; WithoutCache forces a fresh parse.
package config
