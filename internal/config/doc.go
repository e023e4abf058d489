// Package config handles configuration loading for tollgate.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion, then defaulted and validated. The format is chosen by extension:
// ".toml" decodes as TOML, anything else as YAML.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TOLLGATE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tollgate/config.yaml
//  3. ~/.config/tollgate/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TOLLGATE_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Example
//
//	app:
//	  name: "tollgate"
//	  environment: "production"
//	  base_url: "https://api.example.com"
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  cors_origins: ["https://app.example.com"]
//
//	database:
//	  path: "/var/lib/tollgate/tollgate.db"
//
//	auth:
//	  api_key_prefix: "lt_"
//	  jwt_secret: "${TOLLGATE_JWT_SECRET}"
//	  login_rate: 5
//	  login_burst: 5
//	  session_purge_interval: "1h"
//
//	billing:
//	  monthly_limits:
//	    free: 100
//	    pro: 5000
//	    enterprise: -1
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Production Posture
//
// With app.environment set to "production" session cookies carry the Secure
// flag, app.debug is refused, and jwt_secret must be at least 32 bytes.
package config
