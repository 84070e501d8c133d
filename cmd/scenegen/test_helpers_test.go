package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	outputDir  string
	mediaDir   string
	historyDB  string
	promptLog  string
}

const fakeLLMScript = `#!/bin/sh
printf '%%s\n---\n' "$1" >> %q
cat <<'PY'
Here is your scene:
` + "```python" + `
from manim import *

class GenScene(Scene):
    def construct(self):
        self.play(Create(Circle()))
` + "```" + `
Enjoy!
PY
`

// fakeManimScript fails until it has been called succeedOn times.
const fakeManimScript = `#!/bin/sh
count_file=%q
n=$(cat "$count_file" 2>/dev/null || echo 0)
n=$((n+1))
echo "$n" > "$count_file"
if [ "$n" -lt %d ]; then
  echo "NameError: name 'Foo' is not defined" >&2
  exit 1
fi
mkdir -p %q
printf video > %q/"$3".mp4
`

type envOption func(*envSettings)

type envSettings struct {
	succeedOn int
	maxFix    int
	manim     string
	ntfyTopic string
}

func withRenderSucceedingOn(n int) envOption {
	return func(s *envSettings) { s.succeedOn = n }
}

func withMaxFix(n int) envOption {
	return func(s *envSettings) { s.maxFix = n }
}

func withManimBinary(path string) envOption {
	return func(s *envSettings) { s.manim = path }
}

func withNtfyTopic(url string) envOption {
	return func(s *envSettings) { s.ntfyTopic = url }
}

func setupCLITestEnv(t *testing.T, opts ...envOption) *cliTestEnv {
	t.Helper()
	settings := envSettings{succeedOn: 1, maxFix: 2}
	for _, opt := range opts {
		opt(&settings)
	}

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("SCENEGEN_LLM_COMMAND", "")
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "scenegen.toml"),
		outputDir:  filepath.Join(base, "output"),
		mediaDir:   filepath.Join(base, "media"),
		historyDB:  filepath.Join(base, "history.db"),
		promptLog:  filepath.Join(base, "prompts.log"),
	}
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}

	llm := filepath.Join(binDir, "fake-llm")
	writeExecutable(t, llm, fmt.Sprintf(fakeLLMScript, env.promptLog))

	manim := settings.manim
	if manim == "" {
		manim = filepath.Join(binDir, "fake-manim")
		videoDir := filepath.Join(env.mediaDir, "videos", "script", "480p15")
		writeExecutable(t, manim, fmt.Sprintf(fakeManimScript,
			filepath.Join(base, "manim-count"), settings.succeedOn, videoDir, videoDir))
	}

	content := fmt.Sprintf(`[paths]
output_dir = %q
media_dir = %q
log_dir = %q

[llm]
command = [%q, "{prompt}"]
system_prompt = "SYS for {scene}"

[render]
binary = %q
quality = "low"
preview = false

[pipeline]
max_fix_attempts = %d

[history]
enabled = true
path = %q
`, env.outputDir, env.mediaDir, filepath.Join(base, "logs"), llm, manim, settings.maxFix, env.historyDB)
	if settings.ntfyTopic != "" {
		content += fmt.Sprintf("\n[notifications]\nntfy_topic = %q\n", settings.ntfyTopic)
	}
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func writeExecutable(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// runIDFrom extracts the run id from generate output.
func runIDFrom(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "Run: "); ok {
			return strings.Fields(rest)[0]
		}
	}
	t.Fatalf("no run id in output:\n%s", out)
	return ""
}
