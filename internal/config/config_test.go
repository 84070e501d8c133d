package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scenegen/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, ".local", "share", "scenegen", "output")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if !filepath.IsAbs(cfg.Paths.MediaDir) || filepath.Base(cfg.Paths.MediaDir) != "media" {
		t.Fatalf("expected absolute media dir, got %q", cfg.Paths.MediaDir)
	}
	if cfg.Render.Scene != "GenScene" {
		t.Fatalf("unexpected scene: %q", cfg.Render.Scene)
	}
	if cfg.Render.Quality != "medium" {
		t.Fatalf("unexpected quality: %q", cfg.Render.Quality)
	}
	if cfg.Pipeline.MaxFixAttempts != 0 {
		t.Fatalf("expected unbounded fix attempts by default, got %d", cfg.Pipeline.MaxFixAttempts)
	}
	if cfg.ScriptPath() != filepath.Join(wantOutput, "script.py") {
		t.Fatalf("unexpected script path: %q", cfg.ScriptPath())
	}
	if cfg.PublishedVideoPath() != filepath.Join(wantOutput, "GenScene.mp4") {
		t.Fatalf("unexpected published path: %q", cfg.PublishedVideoPath())
	}
	if !strings.Contains(cfg.LLM.SystemPrompt, "Manim") {
		t.Fatalf("expected default system prompt, got %q", cfg.LLM.SystemPrompt)
	}
	if cfg.LLMBinary() != "qwen" {
		t.Fatalf("unexpected llm binary: %q", cfg.LLMBinary())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scenegen.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		LLM struct {
			Command []string `toml:"command"`
		} `toml:"llm"`
		Render struct {
			Scene   string `toml:"scene"`
			Quality string `toml:"quality"`
		} `toml:"render"`
		Pipeline struct {
			MaxFixAttempts int `toml:"max_fix_attempts"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.LLM.Command = []string{"llm-cli", "", "--stdin"}
	custom.Render.Scene = "Orbit"
	custom.Render.Quality = " HIGH "
	custom.Pipeline.MaxFixAttempts = 3
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if !reflect.DeepEqual(cfg.LLM.Command, []string{"llm-cli", "--stdin"}) {
		t.Fatalf("expected blank command parts dropped, got %v", cfg.LLM.Command)
	}
	if cfg.Render.Scene != "Orbit" {
		t.Fatalf("unexpected scene %q", cfg.Render.Scene)
	}
	if cfg.Render.Quality != "high" {
		t.Fatalf("expected normalized quality, got %q", cfg.Render.Quality)
	}
	if cfg.Pipeline.MaxFixAttempts != 3 {
		t.Fatalf("expected max fix attempts 3, got %d", cfg.Pipeline.MaxFixAttempts)
	}
}

func TestEnvCommandFallback(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scenegen.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\ncommand = []\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCENEGEN_LLM_COMMAND", "ollama run  codellama")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []string{"ollama", "run", "codellama"}
	if !reflect.DeepEqual(cfg.LLM.Command, want) {
		t.Fatalf("unexpected command: got %v want %v", cfg.LLM.Command, want)
	}
}

func TestLoadRejectsEmptyCommand(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scenegen.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\ncommand = []\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCENEGEN_LLM_COMMAND", "")

	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "llm.command") {
		t.Fatalf("expected llm.command error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), config.PromptPlaceholder) {
		t.Fatalf("sample config missing prompt placeholder: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Render.Scene != "GenScene" {
		t.Fatalf("expected sample scene GenScene, got %q", cfg.Render.Scene)
	}
	if !strings.Contains(cfg.Paths.OutputDir, "scenegen") {
		t.Fatalf("expected output dir to contain scenegen, got %q", cfg.Paths.OutputDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"quality":          func(c *config.Config) { c.Render.Quality = "ultra" },
		"scene":            func(c *config.Config) { c.Render.Scene = "../Evil" },
		"max fix attempts": func(c *config.Config) { c.Pipeline.MaxFixAttempts = -1 },
		"script name":      func(c *config.Config) { c.Pipeline.ScriptName = "dir/script.py" },
		"llm timeout":      func(c *config.Config) { c.LLM.TimeoutSeconds = -5 },
		"render timeout":   func(c *config.Config) { c.Render.TimeoutSeconds = -1 },
		"log format":       func(c *config.Config) { c.Logging.Format = "xml" },
		"log level":        func(c *config.Config) { c.Logging.Level = "trace" },
		"command":          func(c *config.Config) { c.LLM.Command = nil },
		"ntfy topic":       func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" },
		"ntfy timeout":     func(c *config.Config) { c.Notifications.RequestTimeoutSeconds = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	tempDir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(tempDir, "out")
	cfg.Paths.LogDir = filepath.Join(tempDir, "logs")
	cfg.History.Path = filepath.Join(tempDir, "state", "history.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, filepath.Join(tempDir, "state")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}

func TestValidateScene(t *testing.T) {
	for _, name := range []string{"GenScene", "_Private", "Scene2"} {
		if err := config.ValidateScene(name); err != nil {
			t.Fatalf("ValidateScene(%q) returned error: %v", name, err)
		}
	}
	for _, name := range []string{"", "../../escape", "My Scene", `a\b`, "9Lives", "Scene.mp4"} {
		if err := config.ValidateScene(name); err == nil {
			t.Fatalf("expected ValidateScene(%q) to fail", name)
		}
	}
}

func TestSystemPromptForScene(t *testing.T) {
	cfg := config.Default()
	got := cfg.SystemPromptFor("OrbitScene")
	if !strings.Contains(got, "class OrbitScene(Scene)") || strings.Contains(got, config.ScenePlaceholder) {
		t.Fatalf("expected default prompt bound to OrbitScene, got %q", got)
	}
	if strings.Contains(got, "GenScene") {
		t.Fatalf("default prompt still names GenScene: %q", got)
	}

	cfg.LLM.SystemPrompt = "Write Manim code."
	if got := cfg.SystemPromptFor("Foo"); got != "Write Manim code.\n\nDefine exactly one class Foo(Scene)." {
		t.Fatalf("expected class requirement appended, got %q", got)
	}
	cfg.LLM.SystemPrompt = "Use class Foo(Scene) only."
	if got := cfg.SystemPromptFor("Foo"); got != "Use class Foo(Scene) only." {
		t.Fatalf("expected prompt naming the class left alone, got %q", got)
	}
	cfg.LLM.SystemPrompt = ""
	if got := cfg.SystemPromptFor("Foo"); got != "Define exactly one class Foo(Scene)." {
		t.Fatalf("expected bare requirement, got %q", got)
	}
}
