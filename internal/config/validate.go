package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError collects every configuration problem found during Load
// so a broken deployment reports them all at once.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validate performs cross-field validation on the complete configuration.
// Returns a list of validation errors.
func validate(cfg *Config) []string {
	var errs []string

	if cfg.APIBase == "" {
		errs = append(errs, "IPWEAVER_API_BASE: is required")
	} else if u, err := url.Parse(cfg.APIBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("IPWEAVER_API_BASE: must be an http or https URL, got %q", cfg.APIBase))
	}

	if cfg.Domain == "" {
		errs = append(errs, "IPWEAVER_DOMAIN: is required")
	} else if !strings.Contains(strings.Trim(cfg.Domain, "."), ".") {
		errs = append(errs, fmt.Sprintf("IPWEAVER_DOMAIN: must be a registrable domain like example.com, got %q", cfg.Domain))
	}

	if cfg.Subdomain == "" {
		errs = append(errs, "IPWEAVER_SUBDOMAIN: is required")
	} else if strings.Contains(cfg.Subdomain, ".") {
		errs = append(errs, fmt.Sprintf("IPWEAVER_SUBDOMAIN: must be a single label without dots, got %q", cfg.Subdomain))
	}

	if cfg.TTL < 1 {
		errs = append(errs, fmt.Sprintf("IPWEAVER_TTL: must be at least 1, got %d", cfg.TTL))
	}
	if cfg.Interval < time.Second {
		errs = append(errs, fmt.Sprintf("IPWEAVER_INTERVAL: must be at least 1s, got %s", cfg.Interval))
	}
	if cfg.LookupTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("IPWEAVER_LOOKUP_TIMEOUT: must be at least 1s, got %s", cfg.LookupTimeout))
	}
	if cfg.APITimeout < time.Second {
		errs = append(errs, fmt.Sprintf("IPWEAVER_API_TIMEOUT: must be at least 1s, got %s", cfg.APITimeout))
	}

	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("IPWEAVER_HEALTH_PORT: must be between 0 and 65535, got %d", cfg.HealthPort))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("IPWEAVER_LOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("IPWEAVER_LOG_FORMAT: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	return errs
}
