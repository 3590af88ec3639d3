// Package config handles rulegate configuration parsing and validation.
//
// # Overview
//
// Configuration is written in HCL. JSON is accepted as a fallback, and YAML
// is accepted for the gateway's service list (the config.yml layout with a
// top-level services list is recognised).
//
// # Configuration Blocks
//
// Main HCL blocks:
//   - console: backend address and per-call timeout used by every console
//   - web: listen address, cookie secret and trusted proxies of the
//     browser console
//   - logging: level and format
//   - backend: the development backend, with one service block per service
//
// # Example
//
//	schema_version = "1.0"
//
//	console {
//	  backend_url = "http://127.0.0.1:1234"
//	  timeout     = "10s"
//	}
//
//	backend {
//	  listen = "127.0.0.1:1234"
//
//	  service "http" {
//	    from = ":8080"
//	    to   = "127.0.0.1:80"
//	  }
//	}
//
// # Environment
//
// Values from the environment override the file: RULEGATE_BACKEND_URL,
// RULEGATE_PASSWORD, RULEGATE_SESSION_SECRET, RULEGATE_LOG_LEVEL, and
// AUTH_PASSWORD for the development backend password.
package config
