package cmdrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const waitDelay = 2 * time.Second

// ErrNotFound reports that the binary could not be resolved.
var ErrNotFound = errors.New("command not found")

// Request describes one process invocation.
type Request struct {
	Binary string
	Args   []string
	// Stdin is written to the process and then closed. Nil leaves stdin unattached.
	Stdin io.Reader
	Dir   string
}

// Result captures what the process produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// CommandExecutor runs real processes via os/exec.
type CommandExecutor struct{}

// Run blocks until the process exits. A non-zero exit status is returned in
// Result.ExitCode with a nil error; errors are reserved for processes that
// could not start or were interrupted by ctx.
func (CommandExecutor) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Binary) == "" {
		return Result{}, fmt.Errorf("%w: empty binary", ErrNotFound)
	}
	cmd := exec.CommandContext(ctx, req.Binary, req.Args...) //nolint:gosec
	cmd.Dir = req.Dir
	// Children that inherit the output pipes must not hold Wait open after a kill.
	cmd.WaitDelay = waitDelay
	if req.Stdin != nil {
		cmd.Stdin = req.Stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   Decode(stdout.Bytes()),
		Stderr:   Decode(stderr.Bytes()),
		Duration: time.Since(started),
	}
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", req.Binary, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("%w: %s", ErrNotFound, req.Binary)
	}
	return result, fmt.Errorf("run %s: %w", req.Binary, err)
}

// Decode converts process output to a string, dropping a leading byte order
// mark and replacing invalid UTF-8 with U+FFFD.
func Decode(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// CommandLine renders binary and args for log output.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	parts = append(parts, args...)
	return strings.Join(parts, " ")
}
