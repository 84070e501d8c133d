package cmdrun_test

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"scenegen/internal/services/cmdrun"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandExecutorCapturesStreamsAndExitCode(t *testing.T) {
	requireShell(t)
	res, err := cmdrun.CommandExecutor{}.Run(context.Background(), cmdrun.Request{
		Binary: "sh",
		Args:   []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("unexpected streams: stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestCommandExecutorPipesStdin(t *testing.T) {
	requireShell(t)
	res, err := cmdrun.CommandExecutor{}.Run(context.Background(), cmdrun.Request{
		Binary: "sh",
		Args:   []string{"-c", "cat"},
		Stdin:  strings.NewReader("hello prompt\n"),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Stdout != "hello prompt\n" {
		t.Fatalf("expected stdin echoed, got %q", res.Stdout)
	}
}

func TestCommandExecutorMissingBinary(t *testing.T) {
	_, err := cmdrun.CommandExecutor{}.Run(context.Background(), cmdrun.Request{Binary: "scenegen-definitely-missing-binary"})
	if !errors.Is(err, cmdrun.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "scenegen-definitely-missing-binary") {
		t.Fatalf("expected binary name in error, got %v", err)
	}
}

func TestCommandExecutorContextTimeout(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := cmdrun.CommandExecutor{}.Run(ctx, cmdrun.Request{Binary: "sh", Args: []string{"-c", "exec sleep 5"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDecodeReplacesInvalidUTF8(t *testing.T) {
	got := cmdrun.Decode([]byte{0xEF, 0xBB, 0xBF, 'o', 'k', 0xff, '!'})
	if got != "ok\uFFFD!" {
		t.Fatalf("unexpected decode %q", got)
	}
	if cmdrun.Decode(nil) != "" {
		t.Fatal("expected empty string for nil input")
	}
}

func TestCommandLine(t *testing.T) {
	if got := cmdrun.CommandLine("manim", []string{"-qm", "s.py", "GenScene"}); got != "manim -qm s.py GenScene" {
		t.Fatalf("unexpected command line %q", got)
	}
}
