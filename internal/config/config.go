package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// PromptPlaceholder is substituted with the full prompt inside LLM command arguments.
const PromptPlaceholder = "{prompt}"

// ScenePlaceholder is substituted with the scene class name inside llm.system_prompt.
const ScenePlaceholder = "{scene}"

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	MediaDir  string `toml:"media_dir"`
	LogDir    string `toml:"log_dir"`
}

// LLM contains the external LLM command template and prompt preamble.
type LLM struct {
	Command        []string `toml:"command"`
	SystemPrompt   string   `toml:"system_prompt"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Render contains Manim invocation settings.
type Render struct {
	Binary         string `toml:"binary"`
	Scene          string `toml:"scene"`
	Quality        string `toml:"quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Preview        bool   `toml:"preview"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
}

// Pipeline contains retry loop settings.
type Pipeline struct {
	// MaxFixAttempts bounds the number of regenerate-and-retry cycles after a
	// failed render. Zero means no ceiling.
	MaxFixAttempts int    `toml:"max_fix_attempts"`
	ScriptName     string `toml:"script_name"`
}

// History contains configuration for the run history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains ntfy settings for run completion messages.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format  string `toml:"format"`
	Level   string `toml:"level"`
	Journal bool   `toml:"journal"`
}

// Config encapsulates all configuration values for scenegen.
//
// Configuration sections by subsystem:
//   - Paths: output, Manim media, and log directories
//   - LLM: external command template and system preamble
//   - Render: Manim binary, scene, quality, and preview extraction
//   - Pipeline: fix-attempt ceiling and script file name
//   - History: SQLite run journal
//   - Notifications: ntfy topic for finished runs
//   - Logging: log format, level, and journald sink
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Render        Render        `toml:"render"`
	Pipeline      Pipeline      `toml:"pipeline"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scenegen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenegen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories. The media
// directory belongs to Manim and is left alone.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// ScriptPath returns the fixed location of the generated scene script.
func (c *Config) ScriptPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Pipeline.ScriptName)
}

// PublishedVideoPath returns where a successful render is copied.
func (c *Config) PublishedVideoPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Render.Scene+".mp4")
}

// PreviewPath returns where the preview frame is written.
func (c *Config) PreviewPath() string {
	return filepath.Join(c.Paths.OutputDir, "preview.png")
}

// LockPath returns the run lock file guarding the output directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.OutputDir, ".scenegen.lock")
}

// SystemPromptFor returns llm.system_prompt bound to scene. The placeholder is
// replaced when present; otherwise the class requirement is appended so a
// custom preamble cannot ask for a different class than the one rendered.
func (c *Config) SystemPromptFor(scene string) string {
	prompt := strings.TrimSpace(c.LLM.SystemPrompt)
	if strings.Contains(prompt, ScenePlaceholder) {
		return strings.ReplaceAll(prompt, ScenePlaceholder, scene)
	}
	if strings.Contains(prompt, "class "+scene+"(") {
		return prompt
	}
	requirement := fmt.Sprintf("Define exactly one class %s(Scene).", scene)
	if prompt == "" {
		return requirement
	}
	return prompt + "\n\n" + requirement
}

// LLMBinary returns the executable named by the LLM command template.
func (c *Config) LLMBinary() string {
	if len(c.LLM.Command) == 0 {
		return ""
	}
	return c.LLM.Command[0]
}

// ExpandPath resolves tilde prefixes and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
