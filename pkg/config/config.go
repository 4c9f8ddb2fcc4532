// Package config loads and persists prism's configuration.
//
// Configuration lives in a single JSON document, with every field
// overridable through PRISM_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// DataDir holds everything the bot persists: the channel registry,
	// provider sessions, key pair and pending notices.
	DataDir string `env:"PRISM_DATA_DIR" json:"data_dir"`

	Discord   DiscordConfig   `json:"discord"`
	Relay     RelayConfig     `json:"relay"`
	Providers ProvidersConfig `json:"providers"`
	Log       LogConfig       `json:"log"`
}

type DiscordConfig struct {
	Token         string `env:"PRISM_DISCORD_TOKEN"          json:"token"`
	CommandPrefix string `env:"PRISM_DISCORD_COMMAND_PREFIX" json:"command_prefix"`
	OperatorRole  string `env:"PRISM_DISCORD_OPERATOR_ROLE"  json:"operator_role"`
	WebhookName   string `env:"PRISM_DISCORD_WEBHOOK_NAME"   json:"webhook_name"`
}

type RelayConfig struct {
	// UploadCeilingBytes caps attachment size; larger images are
	// re-encoded down to fit. Discord rejects uploads past 8 MB.
	UploadCeilingBytes int `env:"PRISM_RELAY_UPLOAD_CEILING_BYTES" json:"upload_ceiling_bytes"`
}

type ProvidersConfig struct {
	Kakao KakaoConfig `json:"kakao"`
}

type KakaoConfig struct {
	// RESTKey enables the air-quality command when set.
	RESTKey string `env:"PRISM_PROVIDERS_KAKAO_REST_KEY" json:"rest_key"`
}

type LogConfig struct {
	Level string `env:"PRISM_LOG_LEVEL" json:"level"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".prism"),
		Discord: DiscordConfig{
			CommandPrefix: "prism,",
			OperatorRole:  "operator",
			WebhookName:   "prism bridge",
		},
		Relay: RelayConfig{
			UploadCeilingBytes: 8_000_000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the JSON config at path, applies environment overrides
// and returns the result. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes cfg as indented JSON with owner-only permissions.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the fields required to actually run the bot.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (set discord.token or PRISM_DISCORD_TOKEN)")
	}
	if c.Relay.UploadCeilingBytes <= 0 {
		return fmt.Errorf("relay upload ceiling must be positive")
	}
	return nil
}

// RegistryPath is the channel-link registry document.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "registry.json")
}

// PixivSessionPath holds the serialized pixiv cookie jar.
func (c *Config) PixivSessionPath() string {
	return filepath.Join(c.DataDir, "pixiv.json")
}

// NoticeDir holds pending notice files, posted and removed in name order.
func (c *Config) NoticeDir() string {
	return filepath.Join(c.DataDir, "notices")
}

func (c *Config) PrivateKeyPath() string {
	return filepath.Join(c.DataDir, "rsa")
}

func (c *Config) PublicKeyPath() string {
	return filepath.Join(c.DataDir, "rsa.pub")
}
