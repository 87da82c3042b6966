package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the YAML configuration file structure.
// This mirrors the runtime Config but uses YAML-friendly types.
type FileConfig struct {
	Provider *FileProviderConfig `yaml:"provider,omitempty"`
	Record   *FileRecordConfig   `yaml:"record,omitempty"`
	Lookup   *FileLookupConfig   `yaml:"lookup,omitempty"`
	Logging  *FileLoggingConfig  `yaml:"logging,omitempty"`
	Server   *FileServerConfig   `yaml:"server,omitempty"`

	Interval string `yaml:"interval,omitempty"` // Go duration format or bare seconds
	DryRun   *bool  `yaml:"dry_run,omitempty"`  // Pointer to distinguish unset from false
}

// FileProviderConfig holds DNS provider API settings.
type FileProviderConfig struct {
	APIBase string `yaml:"api_base,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// FileRecordConfig holds the managed record's settings.
type FileRecordConfig struct {
	Domain    string `yaml:"domain,omitempty"`
	Subdomain string `yaml:"subdomain,omitempty"`
	TTL       int    `yaml:"ttl,omitempty"`
}

// FileLookupConfig holds public IP discovery settings.
type FileLookupConfig struct {
	IPv4Services   []string `yaml:"ipv4_services,omitempty"`
	IPv6Services   []string `yaml:"ipv6_services,omitempty"`
	Timeout        string   `yaml:"timeout,omitempty"`
	VerifyResolver string   `yaml:"verify_resolver,omitempty"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, text
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in all string
// fields of the file config.
func (c *FileConfig) interpolateEnvVars() {
	c.Interval = InterpolateEnvVars(c.Interval)

	if c.Provider != nil {
		c.Provider.APIBase = InterpolateEnvVars(c.Provider.APIBase)
		c.Provider.Timeout = InterpolateEnvVars(c.Provider.Timeout)
	}
	if c.Record != nil {
		c.Record.Domain = InterpolateEnvVars(c.Record.Domain)
		c.Record.Subdomain = InterpolateEnvVars(c.Record.Subdomain)
	}
	if c.Lookup != nil {
		for i := range c.Lookup.IPv4Services {
			c.Lookup.IPv4Services[i] = InterpolateEnvVars(c.Lookup.IPv4Services[i])
		}
		for i := range c.Lookup.IPv6Services {
			c.Lookup.IPv6Services[i] = InterpolateEnvVars(c.Lookup.IPv6Services[i])
		}
		c.Lookup.Timeout = InterpolateEnvVars(c.Lookup.Timeout)
		c.Lookup.VerifyResolver = InterpolateEnvVars(c.Lookup.VerifyResolver)
	}
	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}
}

// LoadFile reads and parses a YAML configuration file.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// applyTo layers the file config over cfg. Environment variables applied
// afterwards still win.
func (c *FileConfig) applyTo(cfg *Config) {
	if c.Interval != "" {
		if interval, err := parseDurationOrSeconds(c.Interval); err == nil {
			cfg.Interval = interval
		}
	}
	if c.DryRun != nil {
		cfg.DryRun = *c.DryRun
	}

	if c.Provider != nil {
		if c.Provider.APIBase != "" {
			cfg.APIBase = c.Provider.APIBase
		}
		if c.Provider.Timeout != "" {
			if d, err := parseDurationOrSeconds(c.Provider.Timeout); err == nil {
				cfg.APITimeout = d
			}
		}
	}

	if c.Record != nil {
		if c.Record.Domain != "" {
			cfg.Domain = c.Record.Domain
		}
		if c.Record.Subdomain != "" {
			cfg.Subdomain = c.Record.Subdomain
		}
		if c.Record.TTL > 0 {
			cfg.TTL = c.Record.TTL
		}
	}

	if c.Lookup != nil {
		if len(c.Lookup.IPv4Services) > 0 {
			cfg.IPv4Services = c.Lookup.IPv4Services
		}
		if len(c.Lookup.IPv6Services) > 0 {
			cfg.IPv6Services = c.Lookup.IPv6Services
		}
		if c.Lookup.Timeout != "" {
			if d, err := parseDurationOrSeconds(c.Lookup.Timeout); err == nil {
				cfg.LookupTimeout = d
			}
		}
		if c.Lookup.VerifyResolver != "" {
			cfg.VerifyResolver = c.Lookup.VerifyResolver
		}
	}

	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Logging.Level)
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Logging.Format)
		}
	}

	if c.Server != nil && c.Server.Port > 0 && c.Server.Port <= 65535 {
		cfg.HealthPort = c.Server.Port
	}
}
