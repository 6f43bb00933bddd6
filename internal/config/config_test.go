package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PEP_ALLOWED_DOMAINS", "PEP_MAX_REQUEST_BYTES", "PEP_MAX_RESPONSE_BYTES",
		"PEP_MAX_REDIRECTS", "PEP_AUDIT_LOG", "PEP_POLICY_DIR", "PEP_CONFIG_FILE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg := FromEnv()
	if cfg.MaxRequestBytes != defaultMaxRequestBytes {
		t.Errorf("MaxRequestBytes = %d, want %d", cfg.MaxRequestBytes, defaultMaxRequestBytes)
	}
	if cfg.MaxResponseBytes != defaultMaxResponseBytes {
		t.Errorf("MaxResponseBytes = %d, want %d", cfg.MaxResponseBytes, defaultMaxResponseBytes)
	}
	if cfg.MaxRedirects != defaultMaxRedirects {
		t.Errorf("MaxRedirects = %d, want %d", cfg.MaxRedirects, defaultMaxRedirects)
	}
	if cfg.AuditLogPath != defaultAuditLogPath {
		t.Errorf("AuditLogPath = %q, want %q", cfg.AuditLogPath, defaultAuditLogPath)
	}
	if len(cfg.AllowedDomains) != 0 {
		t.Errorf("AllowedDomains = %v, want empty", cfg.AllowedDomains)
	}
}

func TestFromEnvParsesAllowedDomains(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("PEP_ALLOWED_DOMAINS", " Example.com ,, api.Openai.com ")

	cfg := FromEnv()
	want := []string{"example.com", "api.openai.com"}
	if len(cfg.AllowedDomains) != len(want) {
		t.Fatalf("AllowedDomains = %v, want %v", cfg.AllowedDomains, want)
	}
	for i := range want {
		if cfg.AllowedDomains[i] != want[i] {
			t.Fatalf("AllowedDomains = %v, want %v", cfg.AllowedDomains, want)
		}
	}
}

func TestFromEnvEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	confPath := filepath.Join(dir, "pepd.toml")
	if err := os.WriteFile(confPath, []byte("max_redirects = 2\naudit_log = \"file.jsonl\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("PEP_CONFIG_FILE", confPath)
	t.Setenv("PEP_MAX_REDIRECTS", "9")

	cfg := FromEnv()
	if cfg.MaxRedirects != 9 {
		t.Errorf("MaxRedirects = %d, want 9 (env should win)", cfg.MaxRedirects)
	}
	if cfg.AuditLogPath != "file.jsonl" {
		t.Errorf("AuditLogPath = %q, want file.jsonl (from file, no env set)", cfg.AuditLogPath)
	}
}

func TestFromEnvUnparseableFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("PEP_MAX_REDIRECTS", "not-a-number")

	cfg := FromEnv()
	if cfg.MaxRedirects != defaultMaxRedirects {
		t.Errorf("MaxRedirects = %d, want default %d", cfg.MaxRedirects, defaultMaxRedirects)
	}
}
