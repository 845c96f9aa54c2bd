// Package config handles configuration loading for agentchat.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  jwt_secret: "${AGENTCHAT_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	dispatch:
//	  timeout: "30s"
//	  backoff_base: "1s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/agentchat/agentchat.db"
//
// Session tokens:
//
//	session:
//	  jwt_secret: "${AGENTCHAT_JWT_SECRET}"  # Required
//	  token_ttl: "24h"
//
// Completion model:
//
//	model:
//	  mode: "openai"            # openai, custom
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//
// A missing api_key is not a Load() error: the server starts and the chat
// service reports the misconfiguration as its error state instead.
//
// Dispatch policy:
//
//	dispatch:
//	  max_retries: 3
//	  timeout: "30s"
//	  backoff_base: "1s"
//
// Context window budget:
//
//	context:
//	  token_ceiling: 2000
//	  max_messages: 10
//
// Agent profile packs:
//
//	profiles:
//	  packs_dir: "/etc/agentchat/profiles"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load("/etc/agentchat/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
