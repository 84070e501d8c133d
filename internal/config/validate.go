package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Qualities lists the accepted render.quality values.
var Qualities = []string{"low", "medium", "high"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if len(c.LLM.Command) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/scenegen/config.toml"
		}
		return fmt.Errorf("llm.command is required. Set SCENEGEN_LLM_COMMAND or edit %s (create with 'scenegen config init')", defaultPath)
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateRender() error {
	if !validQuality(c.Render.Quality) {
		return fmt.Errorf("render.quality must be one of %s, got %q", strings.Join(Qualities, ", "), c.Render.Quality)
	}
	if err := ValidateScene(c.Render.Scene); err != nil {
		return fmt.Errorf("render.scene: %w", err)
	}
	if c.Render.TimeoutSeconds < 0 {
		return errors.New("render.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxFixAttempts < 0 {
		return errors.New("pipeline.max_fix_attempts must not be negative (0 disables the ceiling)")
	}
	if filepath.Base(c.Pipeline.ScriptName) != c.Pipeline.ScriptName {
		return fmt.Errorf("pipeline.script_name must be a bare file name, got %q", c.Pipeline.ScriptName)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// ValidateScene reports whether name can be both a Python class name and the
// base name of the published video.
func ValidateScene(name string) error {
	if name == "" {
		return errors.New("scene name is empty")
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("scene must be a class name (letters, digits, underscore), got %q", name)
		}
	}
	return nil
}

func validQuality(value string) bool {
	for _, q := range Qualities {
		if value == q {
			return true
		}
	}
	return false
}
