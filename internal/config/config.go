// Package config provides configuration management for the studious
// class-files client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Role identifies the acting user's role in a class. The client uses it as a
// fast-path permission guard; the backend remains the actual authority.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// CanMutate reports whether the role is allowed to issue mutating operations.
func (r Role) CanMutate() bool {
	return r == RoleTeacher
}

// Config is the client configuration.
//
// Config file location:
//   - Unix: ~/.config/studious/cli.ini
//   - Windows: %USERPROFILE%\.config\studious\cli.ini
//
// INI format:
//
//	[studious]
//	base_url = https://api.studious.sh
//	api_token = <token>
//	class_id = <class-id>
//	role = teacher
//
//	[studious.notifications]
//	enabled = true
//	show_action_failed = true
//	show_action_complete = false
type Config struct {
	// BaseURL is the backend API base URL.
	BaseURL string `ini:"base_url"`

	// APIToken authenticates requests.
	APIToken string `ini:"api_token"`

	// ClassID scopes every folder/file operation to one class.
	ClassID string `ini:"class_id"`

	// Role is the acting user's role ("teacher" or "student").
	// Default: student (read-only fast path).
	Role Role `ini:"role"`

	// Notifications holds desktop notification settings.
	Notifications NotificationConfig
}

// NotificationConfig contains settings for desktop notifications.
type NotificationConfig struct {
	// Enabled indicates whether notifications are shown.
	// Default: true
	Enabled bool `ini:"enabled"`

	// ShowActionFailed shows a notification when an action fails.
	// Default: true
	ShowActionFailed bool `ini:"show_action_failed"`

	// ShowActionComplete shows a notification when an action completes.
	// Default: false to avoid spam.
	ShowActionComplete bool `ini:"show_action_complete"`
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		Role: RoleStudent,
		Notifications: NotificationConfig{
			Enabled:          true,
			ShowActionFailed: true,
		},
	}
}

// Path returns the default config file path.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "studious", "cli.ini"), nil
}

// Load reads the config file at path, applying defaults for missing values
// and environment overrides (STUDIOUS_API_TOKEN, STUDIOUS_BASE_URL,
// STUDIOUS_CLASS_ID) on top. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); err == nil {
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := file.Section("studious").MapTo(cfg); err != nil {
			return nil, fmt.Errorf("failed to map config: %w", err)
		}
		if err := file.Section("studious.notifications").MapTo(&cfg.Notifications); err != nil {
			return nil, fmt.Errorf("failed to map notification config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.normalize()
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := ini.Empty()
	if err := file.Section("studious").ReflectFrom(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := file.Section("studious.notifications").ReflectFrom(&c.Notifications); err != nil {
		return fmt.Errorf("failed to encode notification config: %w", err)
	}

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the config is usable for API calls.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("API base URL is empty (set base_url in config or STUDIOUS_BASE_URL)")
	}
	if c.ClassID == "" {
		return fmt.Errorf("class ID is empty (set class_id in config or STUDIOUS_CLASS_ID)")
	}
	if c.Role != RoleTeacher && c.Role != RoleStudent {
		return fmt.Errorf("unknown role %q (want teacher or student)", c.Role)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STUDIOUS_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("STUDIOUS_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("STUDIOUS_CLASS_ID"); v != "" {
		cfg.ClassID = v
	}
	if v := os.Getenv("STUDIOUS_ROLE"); v != "" {
		cfg.Role = Role(strings.ToLower(v))
	}
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	c.Role = Role(strings.ToLower(string(c.Role)))
	if c.Role == "" {
		c.Role = RoleStudent
	}
}
