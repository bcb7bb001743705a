package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ==================== Load ====================

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BaseURL != "https://app.rainyun.com" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.MaxRetries != 5 || cfg.MatchRatio != 0.8 {
		t.Errorf("max retries = %d, match ratio = %v", cfg.MaxRetries, cfg.MatchRatio)
	}
	if cfg.RenewDays != 7 || cfg.RenewCost != 2258 || cfg.RenewThresholdDays != 7 {
		t.Errorf("renew policy = %d days, %d points, threshold %d", cfg.RenewDays, cfg.RenewCost, cfg.RenewThresholdDays)
	}
	if cfg.Selectors.CaptchaFrame != "#tcaptcha_iframe_dy" {
		t.Errorf("captcha frame = %q", cfg.Selectors.CaptchaFrame)
	}
	if len(cfg.SignedMarks) == 0 {
		t.Error("signed marks are empty")
	}
	if !cfg.Headless {
		t.Error("headless should default to true")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("RAINYUN_USER", "bob")
	t.Setenv("MAX_RETRIES", "2")
	t.Setenv("SELECTORS_POINTS", "#points")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "bob" {
		t.Errorf("user = %q, want bob", cfg.User)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("max retries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.Selectors.Points != "#points" {
		t.Errorf("points selector = %q", cfg.Selectors.Points)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"timeout: 30",
		"auto_renew: false",
		"selectors:",
		"  reload: \"#again\"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UIWait() != 30*time.Second {
		t.Errorf("ui wait = %v", cfg.UIWait())
	}
	if cfg.AutoRenew {
		t.Error("auto renew should be off")
	}
	if cfg.Selectors.Reload != "#again" {
		t.Errorf("reload selector = %q", cfg.Selectors.Reload)
	}
	if cfg.Selectors.Background != "#slideBg" {
		t.Errorf("unset selector lost its default: %q", cfg.Selectors.Background)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MATCH_RATIO", "1.5")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for match_ratio > 1")
	}
}

// ==================== Validate ====================

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Timeout: 15, DownloadTimeout: 10, MaxRetries: 5, MatchRatio: 0.8, MaxDelay: 90, RenewThresholdDays: 7, RenewDays: 7}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, false},
		{"ratio one", func(c *Config) { c.MatchRatio = 1 }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"zero download timeout", func(c *Config) { c.DownloadTimeout = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero ratio", func(c *Config) { c.MatchRatio = 0 }, true},
		{"negative delay", func(c *Config) { c.MaxDelay = -5 }, true},
		{"negative threshold", func(c *Config) { c.RenewThresholdDays = -1 }, true},
		{"zero renew days", func(c *Config) { c.RenewDays = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckCredentials(t *testing.T) {
	dir := t.TempDir()
	saved := filepath.Join(dir, "cookies.json")
	if err := os.WriteFile(saved, []byte(`[{"name":"sid","value":"x"}]`), 0600); err != nil {
		t.Fatalf("write cookies: %v", err)
	}
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatalf("write cookies: %v", err)
	}
	missing := filepath.Join(dir, "missing.json")

	tests := []struct {
		name     string
		user     string
		password string
		cookies  string
		wantErr  bool
	}{
		{"credentials", "alice", "secret", missing, false},
		{"no credentials, no session", "", "", missing, true},
		{"blank user", "   ", "secret", missing, true},
		{"no password", "alice", "", missing, true},
		{"no credentials, saved session", "", "", saved, false},
		{"no credentials, empty cookie file", "", "", empty, true},
		{"no credentials, cookie path is a directory", "", "", dir, true},
		{"no credentials, no cookie path", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{User: tt.user, Password: tt.password, CookieFile: tt.cookies}
			err := c.CheckCredentials()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	c := Config{Timeout: 3, DownloadTimeout: 7}
	if c.UIWait() != 3*time.Second {
		t.Errorf("ui wait = %v", c.UIWait())
	}
	if c.DownloadWait() != 7*time.Second {
		t.Errorf("download wait = %v", c.DownloadWait())
	}
}
