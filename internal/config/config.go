// Package config handles loading and validation of ipweaver configuration
// from environment variables, Docker secrets, and an optional YAML file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Configuration defaults.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultDryRun        = false
	DefaultTTL           = 600
	DefaultInterval      = 600 * time.Second
	DefaultLookupTimeout = 30 * time.Second
	DefaultAPITimeout    = 30 * time.Second
	DefaultHealthPort    = 8080

	// Default Docker secret locations, read when the corresponding
	// environment variables are unset.
	DefaultTokenFile     = "/run/secrets/token"
	DefaultAccountIDFile = "/run/secrets/accountid"
)

// Config holds the complete runtime configuration.
// All settings use the IPWEAVER_ prefix.
type Config struct {
	// Provider API
	APIBase   string // Base URL of the DNS provider API
	APIToken  string // Bearer token
	AccountID string // Provider account identifier

	// Record target
	Domain    string // Zone name, e.g. example.com
	Subdomain string // Record label within the zone, e.g. home
	TTL       int    // TTL applied to managed records

	// Timing
	Interval      time.Duration // Delay between reconcile cycles
	LookupTimeout time.Duration // Per-service public IP lookup deadline
	APITimeout    time.Duration // Provider API request deadline

	// Public IP discovery
	IPv4Services []string // Ordered IPv4 lookup service URLs, empty keeps defaults
	IPv6Services []string // Ordered IPv6 lookup service URLs, empty keeps defaults

	// Verification
	VerifyResolver string // Optional resolver (host:port) to probe after writes

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Behavior
	DryRun     bool // If true, don't make actual DNS changes
	HealthPort int  // Port for health/metrics endpoints
}

// FQDN returns the fully qualified record name.
func (c *Config) FQDN() string {
	return c.Subdomain + "." + c.Domain
}

// Load builds the runtime configuration. Precedence, lowest to highest:
// built-in defaults, the optional YAML file, environment variables. All
// validation problems are collected and returned together as a
// *ValidationError so a broken deployment surfaces every mistake at once.
func Load() (*Config, error) {
	var errs []string

	cfg := defaultConfig()

	// Optional YAML file
	if path := getEnv("IPWEAVER_CONFIG_FILE"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			errs = append(errs, "config file: "+err.Error())
		} else {
			fileCfg.applyTo(cfg)
		}
	}

	errs = append(errs, loadEnv(cfg)...)
	errs = append(errs, loadSecrets(cfg)...)
	errs = append(errs, validate(cfg)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		TTL:           DefaultTTL,
		Interval:      DefaultInterval,
		LookupTimeout: DefaultLookupTimeout,
		APITimeout:    DefaultAPITimeout,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		DryRun:        DefaultDryRun,
		HealthPort:    DefaultHealthPort,
	}
}

// loadEnv applies IPWEAVER_* environment variables on top of cfg.
// Returns a list of parse errors (may be empty).
func loadEnv(cfg *Config) []string {
	var errs []string

	if v := getEnv("IPWEAVER_API_BASE"); v != "" {
		cfg.APIBase = v
	}
	if v := getEnv("IPWEAVER_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := getEnv("IPWEAVER_SUBDOMAIN"); v != "" {
		cfg.Subdomain = v
	}
	if v := getEnv("IPWEAVER_VERIFY_RESOLVER"); v != "" {
		cfg.VerifyResolver = v
	}
	if v := getEnv("IPWEAVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getEnv("IPWEAVER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getEnv("IPWEAVER_IPV4_SERVICES"); v != "" {
		cfg.IPv4Services = parseList(v)
	}
	if v := getEnv("IPWEAVER_IPV6_SERVICES"); v != "" {
		cfg.IPv6Services = parseList(v)
	}
	if v := getEnv("IPWEAVER_DRY_RUN"); v != "" {
		dryRun, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("IPWEAVER_DRY_RUN: invalid boolean %q (use true/false, 1/0, yes/no, or on/off)", v))
		} else {
			cfg.DryRun = dryRun
		}
	}

	if v := getEnv("IPWEAVER_TTL"); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("IPWEAVER_TTL: invalid integer %q", v))
		} else {
			cfg.TTL = ttl
		}
	}

	if v := getEnv("IPWEAVER_HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("IPWEAVER_HEALTH_PORT: invalid integer %q", v))
		} else {
			cfg.HealthPort = port
		}
	}

	for _, d := range []struct {
		key  string
		dest *time.Duration
	}{
		{"IPWEAVER_INTERVAL", &cfg.Interval},
		{"IPWEAVER_LOOKUP_TIMEOUT", &cfg.LookupTimeout},
		{"IPWEAVER_API_TIMEOUT", &cfg.APITimeout},
	} {
		v := getEnv(d.key)
		if v == "" {
			continue
		}
		parsed, err := parseDurationOrSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q (use format like 600s, 10m, or a bare number of seconds)", d.key, v))
			continue
		}
		*d.dest = parsed
	}

	return errs
}

// parseDurationOrSeconds accepts Go duration syntax ("600s", "10m") or a
// bare integer treated as seconds.
func parseDurationOrSeconds(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
