// Package config loads vizflow configuration.
//
// A Loader starts from Default, merges each layer file on top (JSON or YAML,
// chosen by extension), then applies VIZFLOW_* environment overrides:
//
//	loader := config.NewLoader()
//	loader.AddLayer("vizflow.yaml")
//	loader.AddLayer("local.json") // overrides vizflow.yaml
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//
// Only keys present in a layer override earlier values. Durations are Go
// duration strings ("2s", "150ms").
//
// Recognized environment variables:
//
//	VIZFLOW_LOG_LEVEL, VIZFLOW_LOG_FORMAT
//	VIZFLOW_NATS_URLS (comma separated), VIZFLOW_NATS_USERNAME,
//	VIZFLOW_NATS_PASSWORD, VIZFLOW_NATS_TOKEN, VIZFLOW_NATS_BUCKET
//	VIZFLOW_WORKERS, VIZFLOW_METRICS_ENABLED, VIZFLOW_METRICS_PORT
//
// Files are read with size and nesting limits and relative paths may not
// escape the working directory.
package config
