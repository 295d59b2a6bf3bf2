// Package config handles configuration loading for the parley server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PARLEY_CONFIG environment variable
//  2. ~/.config/parley/parley.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PARLEY_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_expiry: "192h"
//	agent:
//	  turn_timeout: "2m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//
// Databases (identity and checkpoint stores are separate files by design):
//
//	database:
//	  path: "/var/lib/parley/parley.db"
//	  checkpoint_path: "/var/lib/parley/checkpoints.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${PARLEY_JWT_SECRET}"
//	  token_expiry: "192h"
//
// Agent runtime:
//
//	agent:
//	  provider: "anthropic"   # anthropic, openai
//	  model: "claude-3-7-sonnet-latest"
//	  max_tool_rounds: 8
//	  turn_timeout: "2m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
