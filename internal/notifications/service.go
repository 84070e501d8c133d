package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scenegen/internal/config"
)

const userAgent = "scenegen/0.1"

// promptPreviewLimit bounds how much of the prompt is echoed in a message.
const promptPreviewLimit = 80

// RunSummary describes a finished pipeline run.
type RunSummary struct {
	RunID     string
	Prompt    string
	Attempts  int
	VideoPath string
	Duration  time.Duration
}

// Service is the notification surface used by the CLI.
type Service interface {
	NotifyRunSucceeded(ctx context.Context, run RunSummary) error
	NotifyRunFailed(ctx context.Context, run RunSummary, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunSucceeded(ctx context.Context, run RunSummary) error {
	var b strings.Builder
	b.WriteString("🎬 Video ready")
	if path := strings.TrimSpace(run.VideoPath); path != "" {
		b.WriteString(": ")
		b.WriteString(path)
	}
	writeRunDetails(&b, run, true)
	return n.send(ctx, payload{
		title:   "scenegen - Render Complete",
		message: b.String(),
		tags:    []string{"scenegen", "render", "completed"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, run RunSummary, err error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ Run failed after %s", attemptsLabel(run.Attempts))
	b.WriteString(": ")
	if err != nil {
		b.WriteString(firstLine(err.Error()))
	} else {
		b.WriteString("unknown")
	}
	writeRunDetails(&b, run, false)
	return n.send(ctx, payload{
		title:    "scenegen - Render Failed",
		message:  b.String(),
		tags:     []string{"scenegen", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "scenegen - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"scenegen", "test"},
		priority: "low",
	})
}

// writeRunDetails appends the optional detail lines. Failure messages already
// carry the attempt count in their headline.
func writeRunDetails(b *strings.Builder, run RunSummary, withAttempts bool) {
	if prompt := truncate(firstLine(run.Prompt), promptPreviewLimit); prompt != "" {
		b.WriteString("\nPrompt: ")
		b.WriteString(prompt)
	}
	if withAttempts && run.Attempts > 0 {
		b.WriteString("\nAttempts: ")
		fmt.Fprint(b, run.Attempts)
	}
	if run.Duration > 0 {
		b.WriteString("\nDuration: ")
		b.WriteString(run.Duration.Round(time.Second).String())
	}
	if run.RunID != "" {
		b.WriteString("\nRun: ")
		b.WriteString(run.RunID)
	}
}

func attemptsLabel(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunSucceeded(context.Context, RunSummary) error      { return nil }
func (noopService) NotifyRunFailed(context.Context, RunSummary, error) error { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
