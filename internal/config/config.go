package config

import (
	"os"
	"time"

	"grimm.is/rulegate/internal/brand"
)

// CurrentSchemaVersion is the latest config schema version
const CurrentSchemaVersion = "1.0"

// DefaultTimeout bounds every backend call made by a console.
const DefaultTimeout = 10 * time.Second

// Config is the root of a rulegate configuration file.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty" yaml:"schema_version,omitempty"`

	Console *ConsoleConfig `hcl:"console,block" json:"console,omitempty" yaml:"console,omitempty"`
	Web     *WebConfig     `hcl:"web,block" json:"web,omitempty" yaml:"web,omitempty"`
	Logging *LoggingConfig `hcl:"logging,block" json:"logging,omitempty" yaml:"logging,omitempty"`
	Backend *BackendConfig `hcl:"backend,block" json:"backend,omitempty" yaml:"backend,omitempty"`
}

// ConsoleConfig points a console at the rule backend.
type ConsoleConfig struct {
	BackendURL string `hcl:"backend_url,optional" json:"backend_url,omitempty" yaml:"backend_url,omitempty"`
	TimeoutRaw string `hcl:"timeout,optional" json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Password is only ever taken from the environment.
	Password string        `json:"-" yaml:"-"`
	Timeout  time.Duration `json:"-" yaml:"-"`
}

// WebConfig configures the browser console.
type WebConfig struct {
	Listen        string `hcl:"listen,optional" json:"listen,omitempty" yaml:"listen,omitempty"`
	SessionSecret string `hcl:"session_secret,optional" json:"session_secret,omitempty" yaml:"session_secret,omitempty"`
	SecureCookie  bool   `hcl:"secure_cookie,optional" json:"secure_cookie,omitempty" yaml:"secure_cookie,omitempty"`

	// TrustedProxies are the peers (addresses or CIDRs) whose
	// X-Forwarded-For and X-Real-IP headers name the client.
	TrustedProxies []string `hcl:"trusted_proxies,optional" json:"trusted_proxies,omitempty" yaml:"trusted_proxies,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `hcl:"level,optional" json:"level,omitempty" yaml:"level,omitempty"`
	JSON  bool   `hcl:"json,optional" json:"json,omitempty" yaml:"json,omitempty"`
}

// BackendConfig configures the development backend.
type BackendConfig struct {
	Listen   string          `hcl:"listen,optional" json:"listen,omitempty" yaml:"listen,omitempty"`
	Database string          `hcl:"database,optional" json:"database,omitempty" yaml:"database,omitempty"`
	Services []ServiceConfig `hcl:"service,block" json:"services,omitempty" yaml:"services,omitempty"`

	TrustedProxies []string `hcl:"trusted_proxies,optional" json:"trusted_proxies,omitempty" yaml:"trusted_proxies,omitempty"`

	// Password comes from AUTH_PASSWORD.
	Password string `json:"-" yaml:"-"`
}

// ServiceConfig is one filtered service of the gateway.
type ServiceConfig struct {
	Name string `hcl:"name,label" json:"service_name" yaml:"service_name"`
	From string `hcl:"from,optional" json:"from,omitempty" yaml:"from,omitempty"`
	To   string `hcl:"to,optional" json:"to,omitempty" yaml:"to,omitempty"`
}

// ServiceNames returns the configured service names in file order.
func (b *BackendConfig) ServiceNames() []string {
	names := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		names = append(names, s.Name)
	}
	return names
}

// Default returns a configuration for a backend and console on localhost.
func Default() *Config {
	cfg := &Config{SchemaVersion: CurrentSchemaVersion}
	cfg.fillDefaults()
	return cfg
}

// fillDefaults creates missing blocks and fields.
func (c *Config) fillDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.Console == nil {
		c.Console = &ConsoleConfig{}
	}
	if c.Console.BackendURL == "" {
		c.Console.BackendURL = "http://127.0.0.1:1234"
	}
	if c.Console.TimeoutRaw == "" && c.Console.Timeout == 0 {
		c.Console.Timeout = DefaultTimeout
	}
	if c.Web == nil {
		c.Web = &WebConfig{}
	}
	if c.Web.Listen == "" {
		c.Web.Listen = "127.0.0.1:8088"
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Backend == nil {
		c.Backend = &BackendConfig{}
	}
	if c.Backend.Listen == "" {
		c.Backend.Listen = "127.0.0.1:1234"
	}
	if c.Backend.Database == "" {
		c.Backend.Database = ":memory:"
	}
}

// normalize parses derived fields after decoding.
func (c *Config) normalize() error {
	c.fillDefaults()
	if c.Console.TimeoutRaw != "" {
		d, err := time.ParseDuration(c.Console.TimeoutRaw)
		if err != nil {
			return ValidationError{Field: "console.timeout", Message: err.Error()}
		}
		c.Console.Timeout = d
	}
	return nil
}

// ApplyEnv overrides file values with the environment.
func (c *Config) ApplyEnv() {
	c.fillDefaults()
	if v := brand.Env("BACKEND_URL"); v != "" {
		c.Console.BackendURL = v
	}
	if v := brand.Env("PASSWORD"); v != "" {
		c.Console.Password = v
	}
	if v := brand.Env("SESSION_SECRET"); v != "" {
		c.Web.SessionSecret = v
	}
	if v := brand.Env("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AUTH_PASSWORD"); v != "" {
		c.Backend.Password = v
	}
}
