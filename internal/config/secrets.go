package config

import (
	"fmt"
	"os"
	"strings"
)

// getEnv retrieves an environment variable value.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile retrieves a value from a direct environment variable or from
// a file path given by the file key (Docker secrets pattern). The direct
// value wins; otherwise the file named by fileKey is read, falling back to
// defaultPath when fileKey is unset.
//
// File contents are trimmed of leading/trailing whitespace.
func getEnvOrFile(directKey, fileKey, defaultPath string) (string, error) {
	if v := os.Getenv(directKey); v != "" {
		return v, nil
	}

	path := os.Getenv(fileKey)
	if path == "" {
		path = defaultPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s unset and reading %s failed: %w", directKey, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// TokenFilePath returns where the API token secret lives on disk. Used by
// the setup flow and the startup permission check.
func TokenFilePath() string {
	if path := os.Getenv("IPWEAVER_API_TOKEN_FILE"); path != "" {
		return path
	}
	return DefaultTokenFile
}

// loadSecrets resolves the API token and account ID, preferring direct
// environment variables over secret files.
func loadSecrets(cfg *Config) []string {
	var errs []string

	token, err := getEnvOrFile("IPWEAVER_API_TOKEN", "IPWEAVER_API_TOKEN_FILE", DefaultTokenFile)
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		cfg.APIToken = token
	}

	accountID, err := getEnvOrFile("IPWEAVER_ACCOUNT_ID", "IPWEAVER_ACCOUNT_ID_FILE", DefaultAccountIDFile)
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		cfg.AccountID = accountID
	}

	return errs
}

// parseBool parses a boolean string.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// parseList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
