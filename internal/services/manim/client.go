package manim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scenegen/internal/logging"
	"scenegen/internal/services"
	"scenegen/internal/services/cmdrun"
)

var (
	// ErrRenderFailed reports a renderer process that exited non-zero.
	ErrRenderFailed = errors.New("render failed")
	// ErrEngineNotFound reports a renderer binary that cannot be resolved.
	ErrEngineNotFound = errors.New("render engine not found")
	// ErrOutputDirectoryMissing reports a media root that does not exist after a render.
	ErrOutputDirectoryMissing = errors.New("media directory not found")
	// ErrArtifactNotFound reports a successful render with no <scene>.mp4 under the media root.
	ErrArtifactNotFound = errors.New("rendered video not found")
)

// RenderError carries the exit status and stderr of a failed render.
type RenderError struct {
	ExitCode int
	Stderr   string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed with exit code %d", e.ExitCode)
}

// Is lets errors.Is match both the package sentinel and the shared marker.
func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailed || target == services.ErrExternalTool
}

// Attempt is the captured outcome of the most recent render.
type Attempt struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec cmdrun.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the logger used for render diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each render; zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// Client invokes the renderer and locates its output.
type Client struct {
	binary   string
	scene    string
	quality  Quality
	mediaDir string
	timeout  time.Duration
	exec     cmdrun.Executor
	logger   *slog.Logger

	mu   sync.Mutex
	last Attempt
}

// New constructs a renderer client.
func New(binary, scene string, quality Quality, mediaDir string, opts ...Option) *Client {
	c := &Client{
		binary:   strings.TrimSpace(binary),
		scene:    strings.TrimSpace(scene),
		quality:  quality,
		mediaDir: mediaDir,
		exec:     cmdrun.CommandExecutor{},
		logger:   logging.NewNop(),
	}
	if c.binary == "" {
		c.binary = "manim"
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "manim")
	return c
}

// Scene returns the scene class name rendered by the client.
func (c *Client) Scene() string {
	return c.scene
}

// LastAttempt returns the outcome of the most recent Render call.
func (c *Client) LastAttempt() Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Render runs the renderer on scriptPath and returns the newest matching video.
func (c *Client) Render(ctx context.Context, scriptPath string) (string, error) {
	args := []string{c.quality.Flag(), scriptPath, c.scene}
	commandLine := cmdrun.CommandLine(c.binary, args)
	logger := logging.WithContext(ctx, c.logger)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.Info("running renderer", logging.String("command", commandLine))
	res, err := c.exec.Run(runCtx, cmdrun.Request{Binary: c.binary, Args: args})
	c.record(Attempt{
		Command:  commandLine,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	})
	if err != nil {
		return "", c.classifyRunError(ctx, logger, err)
	}
	if res.ExitCode != 0 {
		logger.Warn("renderer exited with error",
			logging.Int("exit_code", res.ExitCode),
			logging.String(logging.FieldEventType, "render_failed"),
			logging.String("stderr_tail", tail(res.Stderr, 20)),
		)
		return "", &RenderError{ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	artifact, err := FindArtifact(c.mediaDir, c.scene)
	if err != nil {
		logger.Warn("rendered video not located",
			logging.String("media_dir", c.mediaDir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "artifact_missing"),
		)
		return "", err
	}
	logger.Info("render complete",
		logging.String("artifact", artifact),
		logging.Duration("elapsed", res.Duration),
	)
	return artifact, nil
}

func (c *Client) classifyRunError(ctx context.Context, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, cmdrun.ErrNotFound):
		logging.ErrorWithContext(logger, "renderer not found", "render_engine_missing",
			logging.String("binary", c.binary),
			logging.String(logging.FieldErrorHint, "install manim or set render.binary to an absolute path"),
		)
		return services.Wrap(services.ErrConfiguration, "render", "run manim", c.binary, ErrEngineNotFound)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return services.Wrap(services.ErrTimeout, "render", "run manim", fmt.Sprintf("exceeded %s", c.timeout), err)
	default:
		return services.Wrap(services.ErrExternalTool, "render", "run manim", "", err)
	}
}

func (c *Client) record(attempt Attempt) {
	c.mu.Lock()
	c.last = attempt
	c.mu.Unlock()
}

// FindArtifact walks root for files named <scene>.mp4 and returns the one
// with the newest modification time.
func FindArtifact(root, scene string) (string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrOutputDirectoryMissing, root)
	}
	target := scene + ".mp4"
	var (
		newest     string
		newestTime time.Time
	)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped; the render may still have landed elsewhere.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != target {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if newest == "" || fi.ModTime().After(newestTime) {
			newest = path
			newestTime = fi.ModTime()
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("scan media directory: %w", walkErr)
	}
	if newest == "" {
		return "", fmt.Errorf("%w: %s under %s", ErrArtifactNotFound, target, root)
	}
	return newest, nil
}

func tail(text string, lines int) string {
	text = strings.TrimRight(text, "\n")
	parts := strings.Split(text, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
