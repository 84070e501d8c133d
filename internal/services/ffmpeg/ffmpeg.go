// Package ffmpeg extracts still preview frames from rendered videos.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scenegen/internal/logging"
	"scenegen/internal/services"
	"scenegen/internal/services/cmdrun"
)

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

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client runs ffmpeg.
type Client struct {
	binary string
	exec   cmdrun.Executor
	logger *slog.Logger
}

// New constructs a client; a blank binary resolves to "ffmpeg" on PATH.
func New(binary string, opts ...Option) *Client {
	c := &Client{
		binary: strings.TrimSpace(binary),
		exec:   cmdrun.CommandExecutor{},
		logger: logging.NewNop(),
	}
	if c.binary == "" {
		c.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "ffmpeg")
	return c
}

// Binary returns the configured ffmpeg command.
func (c *Client) Binary() string {
	return c.binary
}

// ExtractFrame writes the first video frame of video to dest as an image,
// replacing any existing file.
func (c *Client) ExtractFrame(ctx context.Context, video, dest string) error {
	if strings.TrimSpace(video) == "" || strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "preview", "extract frame", "video and destination required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create preview directory: %w", err)
	}
	args := []string{"-y", "-v", "error", "-i", video, "-frames:v", "1", dest}
	res, err := c.exec.Run(ctx, cmdrun.Request{Binary: c.binary, Args: args})
	if err != nil {
		if errors.Is(err, cmdrun.ErrNotFound) {
			return services.Wrap(services.ErrConfiguration, "preview", "run ffmpeg", c.binary, err)
		}
		return services.Wrap(services.ErrExternalTool, "preview", "run ffmpeg", "", err)
	}
	if res.ExitCode != 0 {
		msg := fmt.Sprintf("exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		return services.Wrap(services.ErrExternalTool, "preview", "run ffmpeg", msg, nil)
	}
	logging.WithContext(ctx, c.logger).Debug("preview frame written", logging.String("path", dest))
	return nil
}
