package config

const (
	defaultOutputDir          = "~/.local/share/scenegen/output"
	defaultMediaDir           = "media"
	defaultLogDir             = "~/.local/share/scenegen/logs"
	defaultHistoryPath        = "~/.local/share/scenegen/history.db"
	defaultLLMTimeoutSeconds  = 600
	defaultRenderBinary       = "manim"
	defaultScene              = "GenScene"
	defaultQuality            = "medium"
	defaultFFmpegBinary       = "ffmpeg"
	defaultScriptName         = "script.py"
	defaultMaxFixAttempts     = 0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLLMCommandFallback = "qwen"
	defaultNtfyTimeoutSeconds = 10
)

// DefaultSystemPrompt steers the LLM towards a single self-contained Manim
// scene that renders without a LaTeX installation.
const DefaultSystemPrompt = `You write complete, runnable Python scripts for the Manim Community library.

Code structure:
1. Begin with "from manim import *" and "import numpy as np".
2. Define exactly one class {scene}(Scene).
3. Put every animation step inside construct(self).

No LaTeX is installed:
1. Do not use Tex, MathTex, Matrix or Title.
2. Use Text for every label, string and formula.
3. Do not call get_axis_labels() on Axes; build Text labels and place them with next_to.

Animation quality:
1. Call self.wait(1) after significant animations.
2. Keep objects from overlapping unless intended.

Output format:
1. Return the Python code inside a single markdown block (` + "```python ... ```" + `).
2. Do not add explanations outside the code block.`

func defaultLLMCommand() []string {
	return []string{defaultLLMCommandFallback, "-p", PromptPlaceholder}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			MediaDir:  defaultMediaDir,
			LogDir:    defaultLogDir,
		},
		LLM: LLM{
			Command:        defaultLLMCommand(),
			SystemPrompt:   DefaultSystemPrompt,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Render: Render{
			Binary:       defaultRenderBinary,
			Scene:        defaultScene,
			Quality:      defaultQuality,
			Preview:      true,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Pipeline: Pipeline{
			MaxFixAttempts: defaultMaxFixAttempts,
			ScriptName:     defaultScriptName,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
