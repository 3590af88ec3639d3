package config

import (
	"fmt"
	"net/url"
	"strings"

	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/rules"
	"grimm.is/rulegate/internal/validation"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the entire configuration.
func (c *Config) Validate() ValidationErrors {
	c.fillDefaults()
	var errs ValidationErrors

	u, err := url.Parse(c.Console.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{"console.backend_url", fmt.Sprintf("%q is not an http(s) URL", c.Console.BackendURL)})
	}
	if c.Console.Timeout <= 0 {
		errs = append(errs, ValidationError{"console.timeout", "must be positive"})
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{"logging.level", err.Error()})
	}

	errs = append(errs, validateProxies("web.trusted_proxies", c.Web.TrustedProxies)...)
	errs = append(errs, validateProxies("backend.trusted_proxies", c.Backend.TrustedProxies)...)

	seen := make(map[string]bool)
	for i, s := range c.Backend.Services {
		field := fmt.Sprintf("backend.service[%d]", i)
		switch {
		case s.Name == "":
			errs = append(errs, ValidationError{field, "name is required"})
		case s.Name == rules.DefaultService:
			// The console uses "default" as the no-selection sentinel.
			errs = append(errs, ValidationError{field, fmt.Sprintf("%q is reserved", s.Name)})
		case seen[s.Name]:
			errs = append(errs, ValidationError{field, fmt.Sprintf("duplicate service %q", s.Name)})
		default:
			// Service names become element ids in the rendered page.
			if err := validation.ValidateIdentifier(s.Name); err != nil {
				errs = append(errs, ValidationError{field, err.Error()})
			}
		}
		seen[s.Name] = true
	}

	return errs
}

func validateProxies(field string, list []string) ValidationErrors {
	var errs ValidationErrors
	for i, p := range list {
		if err := validation.ValidateIPOrCIDR(p); err != nil {
			errs = append(errs, ValidationError{fmt.Sprintf("%s[%d]", field, i), err.Error()})
		}
	}
	return errs
}
