package llmcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"scenegen/internal/config"
	"scenegen/internal/logging"
	"scenegen/internal/sanitize"
	"scenegen/internal/scriptstore"
	"scenegen/internal/services"
	"scenegen/internal/services/cmdrun"
)

var (
	// ErrCommandNotFound reports an LLM binary that cannot be resolved.
	ErrCommandNotFound = errors.New("llm command not found")
	// ErrCommandFailed reports an LLM process that exited non-zero.
	ErrCommandFailed = errors.New("llm command failed")
	// ErrEmptyScript reports output with nothing usable after cleaning.
	ErrEmptyScript = sanitize.ErrEmptyScript
)

// CommandError carries the exit status and stderr of a failed LLM process.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("llm command %s failed with exit code %d", e.Command, e.ExitCode)
}

// Is lets errors.Is match both the package sentinel and the shared marker.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed || target == services.ErrExternalTool
}

// Config captures the command template and prompt preamble.
type Config struct {
	Command      []string
	SystemPrompt string
	Timeout      time.Duration
}

// Option configures the generator.
type Option func(*Generator)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec cmdrun.Executor) Option {
	return func(g *Generator) {
		if exec != nil {
			g.exec = exec
		}
	}
}

// WithLogger sets the logger used for command diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator composes prompts, runs the LLM command, and stores the result.
type Generator struct {
	cfg    Config
	store  scriptstore.Store
	exec   cmdrun.Executor
	logger *slog.Logger
}

// New constructs a generator writing through store.
func New(cfg Config, store scriptstore.Store, opts ...Option) (*Generator, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "generate", "init", "llm command template is empty", nil)
	}
	if store == nil {
		return nil, errors.New("llmcli: script store required")
	}
	g := &Generator{
		cfg: Config{
			Command:      append([]string(nil), cfg.Command...),
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
		},
		store:  store,
		exec:   cmdrun.CommandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "llm")
	return g, nil
}

// Generate runs the LLM with the composed prompt and returns the script path.
func (g *Generator) Generate(ctx context.Context, userPrompt string) (string, error) {
	fullPrompt := BuildPrompt(g.cfg.SystemPrompt, userPrompt)
	inv := BuildInvocation(g.cfg.Command, fullPrompt)
	logger := logging.WithContext(ctx, g.logger)

	runCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	logger.Info(
		"running llm command",
		logging.String("binary", inv.Binary),
		logging.Int("args", len(inv.Args)),
		logging.Bool("stdin_prompt", inv.Stdin != nil),
		logging.Int("prompt_chars", len(fullPrompt)),
	)
	var stdin io.Reader
	if inv.Stdin != nil {
		stdin = strings.NewReader(*inv.Stdin)
	}
	res, err := g.exec.Run(runCtx, cmdrun.Request{Binary: inv.Binary, Args: inv.Args, Stdin: stdin})
	if err != nil {
		return "", g.classifyRunError(ctx, logger, inv.Binary, err)
	}

	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		logger.Debug("llm stderr", logging.String("stderr", stderr))
	}
	if res.ExitCode != 0 {
		cmdErr := &CommandError{Command: inv.Binary, ExitCode: res.ExitCode, Stderr: res.Stderr}
		logging.ErrorWithContext(logger, "llm command failed", "llm_failed",
			logging.Int("exit_code", res.ExitCode),
			logging.String("stderr", strings.TrimSpace(res.Stderr)),
			logging.String(logging.FieldErrorHint, "run the llm command by hand to inspect its output"),
		)
		return "", cmdErr
	}

	cleaned, err := sanitize.Clean(res.Stdout)
	if err != nil {
		logger.Warn("llm returned no usable script", logging.Int("stdout_chars", len(res.Stdout)))
		return "", services.Wrap(services.ErrValidation, "generate", "sanitize", "", err)
	}

	path, err := g.store.Put(ctx, cleaned)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generate", "store script", "", err)
	}
	logger.Info("wrote script", logging.String("path", path), logging.Int("lines", strings.Count(cleaned, "\n")))
	return path, nil
}

func (g *Generator) classifyRunError(ctx context.Context, logger *slog.Logger, binary string, err error) error {
	switch {
	case errors.Is(err, cmdrun.ErrNotFound):
		logging.ErrorWithContext(logger, "llm command not found", "llm_not_found",
			logging.String("binary", binary),
			logging.String(logging.FieldErrorHint, "install the command or configure an absolute path in llm.command"),
		)
		msg := fmt.Sprintf("%s not found; ensure it is installed and on PATH, or use an absolute path", binary)
		return services.Wrap(services.ErrConfiguration, "generate", "run llm", msg, ErrCommandNotFound)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return services.Wrap(services.ErrTimeout, "generate", "run llm", fmt.Sprintf("exceeded %s", g.cfg.Timeout), err)
	default:
		return services.Wrap(services.ErrExternalTool, "generate", "run llm", "", err)
	}
}

// Invocation is the resolved LLM process call.
type Invocation struct {
	Binary string
	Args   []string
	// Stdin holds the prompt when it is piped; nil when substituted into Args.
	Stdin *string
}

// BuildPrompt joins the non-empty trimmed preamble and user prompt with a
// blank line and a single trailing newline.
func BuildPrompt(systemPrompt, userPrompt string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(userPrompt); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// BuildInvocation resolves the command template for fullPrompt.
func BuildInvocation(template []string, fullPrompt string) Invocation {
	command := append([]string(nil), template...)
	inv := Invocation{}
	if usesPlaceholder(command) {
		for i, part := range command {
			command[i] = strings.ReplaceAll(part, config.PromptPlaceholder, fullPrompt)
		}
	} else {
		prompt := fullPrompt
		inv.Stdin = &prompt
	}
	if len(command) > 0 {
		inv.Binary = command[0]
		inv.Args = command[1:]
	}
	return inv
}

func usesPlaceholder(command []string) bool {
	for _, part := range command {
		if strings.Contains(part, config.PromptPlaceholder) {
			return true
		}
	}
	return false
}
