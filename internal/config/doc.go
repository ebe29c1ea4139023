// Package config handles configuration loading for amity-gateway.
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
//	auth:
//	  jwt_secret: "${AMITY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	channel:
//	  auth_timeout: "10s"
//	  write_timeout: "5s"
//	  ping_interval: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and live channel
//
// Database:
//
//	database:
//	  path: "/var/lib/amity/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${AMITY_JWT_SECRET}"   # Required
//
// Live channel timing:
//
//	channel:
//	  auth_timeout: "10s"    # handshake deadline for the auth frame
//	  write_timeout: "5s"
//	  ping_interval: "30s"
//	  send_buffer: 64        # per-connection outbound queue depth
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load("/etc/amity/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
