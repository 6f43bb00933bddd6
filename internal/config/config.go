// Package config builds the process-wide, immutable-after-startup PepConfig
// from the environment (and an optional lower-priority TOML file).
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultMaxRequestBytes  = 5 * 1024 * 1024
	defaultMaxResponseBytes = 10 * 1024 * 1024
	defaultMaxRedirects     = 5
	defaultAuditLogPath     = "./audit.jsonl"
	defaultConfigFilePath   = "./pepd.toml"
)

// PepConfig holds the runtime limits and paths read at startup. It is
// value-typed and, once built, is shared read-only across connections.
type PepConfig struct {
	AllowedDomains   []string
	MaxRequestBytes  uint64
	MaxResponseBytes uint64
	MaxRedirects     uint32
	AuditLogPath     string
	PolicyDir        string
}

// fileDefaults mirrors the subset of PepConfig that may be supplied by the
// optional TOML file, one field per recognized environment variable.
type fileDefaults struct {
	AllowedDomains   string `toml:"allowed_domains"`
	MaxRequestBytes  uint64 `toml:"max_request_bytes"`
	MaxResponseBytes uint64 `toml:"max_response_bytes"`
	MaxRedirects     uint32 `toml:"max_redirects"`
	AuditLog         string `toml:"audit_log"`
	PolicyDir        string `toml:"policy_dir"`
}

// FromEnv reads PEP_* environment variables, each falling back to a value
// from the optional TOML file (PEP_CONFIG_FILE, default ./pepd.toml) and
// finally to the documented default. Environment variables always win over
// the file when both are set.
func FromEnv() PepConfig {
	defaults := loadFileDefaults()

	cfg := PepConfig{
		MaxRequestBytes:  defaultMaxRequestBytes,
		MaxResponseBytes: defaultMaxResponseBytes,
		MaxRedirects:     defaultMaxRedirects,
		AuditLogPath:     defaultAuditLogPath,
	}

	if defaults != nil {
		if defaults.AllowedDomains != "" {
			cfg.AllowedDomains = parseDomains(defaults.AllowedDomains)
		}
		if defaults.MaxRequestBytes > 0 {
			cfg.MaxRequestBytes = defaults.MaxRequestBytes
		}
		if defaults.MaxResponseBytes > 0 {
			cfg.MaxResponseBytes = defaults.MaxResponseBytes
		}
		if defaults.MaxRedirects > 0 {
			cfg.MaxRedirects = defaults.MaxRedirects
		}
		if defaults.AuditLog != "" {
			cfg.AuditLogPath = defaults.AuditLog
		}
		if defaults.PolicyDir != "" {
			cfg.PolicyDir = defaults.PolicyDir
		}
	}

	if raw, ok := os.LookupEnv("PEP_ALLOWED_DOMAINS"); ok {
		cfg.AllowedDomains = parseDomains(raw)
	}
	if v, ok := parseUintEnv("PEP_MAX_REQUEST_BYTES"); ok {
		cfg.MaxRequestBytes = v
	}
	if v, ok := parseUintEnv("PEP_MAX_RESPONSE_BYTES"); ok {
		cfg.MaxResponseBytes = v
	}
	if v, ok := parseUintEnv("PEP_MAX_REDIRECTS"); ok {
		cfg.MaxRedirects = uint32(v)
	}
	if raw, ok := os.LookupEnv("PEP_AUDIT_LOG"); ok {
		cfg.AuditLogPath = raw
	}
	if raw, ok := os.LookupEnv("PEP_POLICY_DIR"); ok {
		cfg.PolicyDir = raw
	}

	return cfg
}

func loadFileDefaults() *fileDefaults {
	path := defaultConfigFilePath
	if raw, ok := os.LookupEnv("PEP_CONFIG_FILE"); ok && raw != "" {
		path = raw
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return nil
	}

	var fd fileDefaults
	if err := toml.Unmarshal(data, &fd); err != nil {
		return nil
	}
	return &fd
}

func parseDomains(raw string) []string {
	parts := strings.Split(raw, ",")
	domains := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			domains = append(domains, p)
		}
	}
	return domains
}

func parseUintEnv(name string) (uint64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
