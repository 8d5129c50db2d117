package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	unsetConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "state_dir": "/var/lib/wabot",
	  "browser": {"url": "http://127.0.0.1:9000", "headless": false},
	  "client": {"reserved_identity": "Support Bot"},
	  "poll": {"interval_seconds": 7, "error_interval_seconds": 21},
	  "dedupe": {"ceiling": 10, "retain": 4},
	  "gateway": {"host": "127.0.0.1", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("WABOT_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.Poll.IntervalSeconds != 7 || cfg.Poll.ErrorIntervalSeconds != 21 {
		t.Fatalf("poll = %+v, want 7/21", cfg.Poll)
	}
	if cfg.Client.ReservedIdentity != "Support Bot" {
		t.Fatalf("client.reserved_identity = %q", cfg.Client.ReservedIdentity)
	}
	if cfg.StateDir != "/var/lib/wabot" {
		t.Fatalf("state_dir = %q", cfg.StateDir)
	}
	if cfg.Browser.Headless {
		t.Fatal("browser.headless = true, want false from file")
	}
	// Unset keys keep their defaults.
	if cfg.Browser.LookupTimeoutSeconds != 10 {
		t.Fatalf("browser.lookup_timeout_seconds = %d, want default 10", cfg.Browser.LookupTimeoutSeconds)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv("WABOT_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Dedupe.Ceiling != 1000 || cfg.Dedupe.Retain != 500 {
		t.Fatalf("dedupe = %+v, want 1000/500", cfg.Dedupe)
	}
	if cfg.Poll.IntervalSeconds != 5 {
		t.Fatalf("poll.interval_seconds = %d, want 5", cfg.Poll.IntervalSeconds)
	}
}

func TestEnvOverrides(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("CHROME_BIN", "/opt/chrome")
	t.Setenv("WABOT_HEADLESS", "false")
	t.Setenv("WABOT_RESERVED_IDENTITY", "Me")
	t.Setenv("WABOT_PORT", "8088")
	t.Setenv("TELEGRAM_CHAT_IDS", " 1, ,2 ")
	t.Setenv("WABOT_STATE_DIR", "/var/lib/wabot")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Browser.Bin != "/opt/chrome" {
		t.Fatalf("browser.bin = %q", cfg.Browser.Bin)
	}
	if cfg.StateDir != "/var/lib/wabot" {
		t.Fatalf("state_dir = %q", cfg.StateDir)
	}
	if cfg.Browser.Headless {
		t.Fatal("expected headless override to false")
	}
	if cfg.Client.ReservedIdentity != "Me" {
		t.Fatalf("reserved identity = %q", cfg.Client.ReservedIdentity)
	}
	if cfg.Gateway.Port != 8088 {
		t.Fatalf("gateway.port = %d", cfg.Gateway.Port)
	}
	if len(cfg.Notify.Telegram.ChatIDs) != 2 {
		t.Fatalf("chat ids = %v, want 2 entries", cfg.Notify.Telegram.ChatIDs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero interval", mutate: func(c *Config) { c.Poll.IntervalSeconds = 0 }},
		{name: "zero error interval", mutate: func(c *Config) { c.Poll.ErrorIntervalSeconds = 0 }},
		{name: "retain above ceiling", mutate: func(c *Config) { c.Dedupe.Retain = c.Dedupe.Ceiling + 1 }},
		{name: "unknown provider", mutate: func(c *Config) { c.Reply.Provider = "magic" }},
		{name: "telegram without token", mutate: func(c *Config) { c.Notify.Telegram.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func unsetConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envConfigPath, envStateDir, envChromeBin, envUserDataDir, envHeadless,
		envReservedIdentity, envPort, envTelegramBotToken, envTelegramChatIDs,
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
