package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	envConfigPath       = "WABOT_CONFIG"
	envStateDir         = "WABOT_STATE_DIR"
	envChromeBin        = "CHROME_BIN"
	envUserDataDir      = "WABOT_USER_DATA_DIR"
	envHeadless         = "WABOT_HEADLESS"
	envReservedIdentity = "WABOT_RESERVED_IDENTITY"
	envPort             = "WABOT_PORT"
	envTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	envTelegramChatIDs  = "TELEGRAM_CHAT_IDS"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	StateDir  string          `json:"state_dir,omitempty"`
	Browser   BrowserConfig   `json:"browser"`
	Client    ClientConfig    `json:"client"`
	Poll      PollConfig      `json:"poll"`
	Dedupe    DedupeConfig    `json:"dedupe"`
	Reply     ReplyConfig     `json:"reply"`
	Providers ProvidersConfig `json:"providers"`
	Notify    NotifyConfig    `json:"notify"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
	File      string `json:"file,omitempty"`
}

// BrowserConfig describes how the Chromium instance is launched and driven.
type BrowserConfig struct {
	Bin                      string   `json:"bin"`
	URL                      string   `json:"url"`
	Headless                 bool     `json:"headless"`
	NoSandbox                bool     `json:"no_sandbox"`
	UserAgent                string   `json:"user_agent"`
	UserDataDir              string   `json:"user_data_dir"`
	WindowWidth              int      `json:"window_width"`
	WindowHeight             int      `json:"window_height"`
	ExtraFlags               []string `json:"extra_flags,omitempty"`
	NavigationTimeoutSeconds int      `json:"navigation_timeout_seconds"`
	LookupTimeoutSeconds     int      `json:"lookup_timeout_seconds"`
	ScreenshotSettleMillis   int      `json:"screenshot_settle_ms"`
}

// ClientConfig configures the messaging web client adapter.
type ClientConfig struct {
	ReservedIdentity string            `json:"reserved_identity"`
	Selectors        map[string]string `json:"selectors,omitempty"`
}

// PollConfig controls the ingestion loop timing.
type PollConfig struct {
	IntervalSeconds      int `json:"interval_seconds"`
	ErrorIntervalSeconds int `json:"error_interval_seconds"`
	SendIntervalMillis   int `json:"send_interval_ms"`
}

// DedupeConfig bounds the seen-message set and optionally persists it.
type DedupeConfig struct {
	Ceiling   int    `json:"ceiling"`
	Retain    int    `json:"retain"`
	StorePath string `json:"store_path,omitempty"`
}

// ReplyConfig selects the reply rule table and responder.
type ReplyConfig struct {
	RulesFile string `json:"rules_file,omitempty"`
	Fallback  string `json:"fallback,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	System    string `json:"system,omitempty"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenAI OpenAIProviderConfig `json:"openai"`
}

// OpenAIProviderConfig configures the OpenAI provider client.
type OpenAIProviderConfig struct {
	BaseURL               string `json:"base_url"`
	APIKeyEnv             string `json:"api_key_env"`
	Organization          string `json:"organization"`
	Project               string `json:"project"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// NotifyConfig groups operator notification channels.
type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the Telegram operator notifier.
type TelegramConfig struct {
	Enabled        bool     `json:"enabled"`
	Token          string   `json:"token"`
	ChatIDs        []string `json:"chat_ids"`
	ForwardReplies bool     `json:"forward_replies"`
}

// GatewayConfig configures HTTP bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Bin:                      "/usr/bin/chromium",
			URL:                      "https://web.whatsapp.com",
			Headless:                 true,
			NoSandbox:                true,
			UserAgent:                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
			WindowWidth:              1920,
			WindowHeight:             1080,
			NavigationTimeoutSeconds: 60,
			LookupTimeoutSeconds:     10,
			ScreenshotSettleMillis:   3000,
		},
		Poll: PollConfig{
			IntervalSeconds:      5,
			ErrorIntervalSeconds: 10,
			SendIntervalMillis:   1000,
		},
		Dedupe: DedupeConfig{
			Ceiling: 1000,
			Retain:  500,
		},
		Reply: ReplyConfig{
			Provider: "rules",
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 10000,
		},
	}
}

// LoadConfig resolves config.json, unmarshals it over defaults, and applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	switch {
	case errors.Is(err, errConfigNotFound):
		// Built-in defaults are enough to start a session.
	case err != nil:
		return nil, err
	default:
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks interval and bound settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Browser.URL) == "" {
		return errors.New("browser.url cannot be empty")
	}
	if c.Poll.IntervalSeconds <= 0 {
		return errors.New("poll.interval_seconds must be > 0")
	}
	if c.Poll.ErrorIntervalSeconds <= 0 {
		return errors.New("poll.error_interval_seconds must be > 0")
	}
	if c.Poll.SendIntervalMillis < 0 {
		return errors.New("poll.send_interval_ms must be >= 0")
	}
	if c.Dedupe.Ceiling <= 0 {
		return errors.New("dedupe.ceiling must be > 0")
	}
	if c.Dedupe.Retain <= 0 || c.Dedupe.Retain > c.Dedupe.Ceiling {
		return fmt.Errorf("dedupe.retain must be between 1 and %d", c.Dedupe.Ceiling)
	}
	switch c.Reply.Provider {
	case "", "rules", "openai":
	default:
		return fmt.Errorf("unsupported reply provider %q", c.Reply.Provider)
	}
	if c.Notify.Telegram.Enabled && strings.TrimSpace(c.Notify.Telegram.Token) == "" {
		return errors.New("notify.telegram.token is required when telegram notifications are enabled")
	}
	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if dir := strings.TrimSpace(os.Getenv(envStateDir)); dir != "" {
		cfg.StateDir = dir
	}
	if bin := strings.TrimSpace(os.Getenv(envChromeBin)); bin != "" {
		cfg.Browser.Bin = bin
	}
	if dir := strings.TrimSpace(os.Getenv(envUserDataDir)); dir != "" {
		cfg.Browser.UserDataDir = dir
	}
	if headless := strings.TrimSpace(os.Getenv(envHeadless)); headless != "" {
		cfg.Browser.Headless = parseBool(headless)
	}
	if identity := strings.TrimSpace(os.Getenv(envReservedIdentity)); identity != "" {
		cfg.Client.ReservedIdentity = identity
	}
	if port := strings.TrimSpace(os.Getenv(envPort)); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Gateway.Port = n
		}
	}
	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if rawChatIDs := strings.TrimSpace(os.Getenv(envTelegramChatIDs)); rawChatIDs != "" {
		cfg.Notify.Telegram.ChatIDs = parseCSV(rawChatIDs)
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var errConfigNotFound = errors.New("config file not found")

// findConfigPath resolves the active config file location.
//
// Precedence is WABOT_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", errConfigNotFound
}
