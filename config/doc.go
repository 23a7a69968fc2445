// Package config loads the gatelink configuration.
//
// Loader merges layers over the defaults: each layer is a JSON or YAML
// file (by extension) and only the keys present in a layer override earlier
// values. Duration values may be written as strings ("5s", "250ms").
// GATELINK_* environment variables are applied last.
//
//	loader := config.NewLoader()
//	loader.AddLayer("gatelink.yaml")
//	loader.AddLayer("gatelink.local.json")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Environment overrides:
//
//	GATELINK_BASE_URL       endpoint.base_url
//	GATELINK_TOKEN          endpoint.token
//	GATELINK_SIMULATION     simulation
//	GATELINK_NATS_URL       nats.url (also enables the relay)
//	GATELINK_NATS_PREFIX    nats.subject_prefix
//	GATELINK_METRICS_PORT   metrics.port
//	GATELINK_LOG_LEVEL      log.level
//	GATELINK_LOG_FORMAT     log.format
//
// Provider exposes the endpoint section to the channels and accepts runtime
// updates of the base URL and token; every dial reads the current values.
package config
