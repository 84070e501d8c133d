package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scenegen/internal/config"
	"scenegen/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		_ = r.Body.Close()
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic rejected"))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunSucceeded(context.Background(), notifications.RunSummary{VideoPath: "/tmp/x.mp4"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	longPrompt := strings.Repeat("a", 100) + "\nsecond line"
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run succeeded",
			send: func(svc notifications.Service) error {
				return svc.NotifyRunSucceeded(context.Background(), notifications.RunSummary{
					RunID:     "run-1",
					Prompt:    "A blue circle grows",
					Attempts:  2,
					VideoPath: "/out/GenScene.mp4",
					Duration:  1500 * time.Millisecond,
				})
			},
			expectTitle:   "scenegen - Render Complete",
			expectMessage: "🎬 Video ready: /out/GenScene.mp4\nPrompt: A blue circle grows\nAttempts: 2\nDuration: 2s\nRun: run-1",
			expectTags:    "scenegen,render,completed",
		},
		{
			name: "run failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyRunFailed(context.Background(), notifications.RunSummary{
					Prompt:   longPrompt,
					Attempts: 3,
				}, errors.New("retry limit exceeded\nTraceback follows"))
			},
			expectTitle:    "scenegen - Render Failed",
			expectMessage:  "❌ Run failed after 3 attempts: retry limit exceeded\nPrompt: " + strings.Repeat("a", 79) + "…",
			expectTags:     "scenegen,error,alert",
			expectPriority: "high",
		},
		{
			name: "single attempt failure",
			send: func(svc notifications.Service) error {
				return svc.NotifyRunFailed(context.Background(), notifications.RunSummary{Attempts: 1}, nil)
			},
			expectTitle:    "scenegen - Render Failed",
			expectMessage:  "❌ Run failed after 1 attempt: unknown",
			expectTags:     "scenegen,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test notification",
			send:           func(svc notifications.Service) error { return svc.TestNotification(context.Background()) },
			expectTitle:    "scenegen - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "scenegen,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newCaptureServer(t, http.StatusOK)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if len(*captured) != 1 {
				t.Fatalf("expected one request, got %d", len(*captured))
			}
			got := (*captured)[0]
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected request")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic rejected") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}
