package main

import (
	"context"
	"log/slog"
	"time"

	"scenegen/internal/config"
	"scenegen/internal/logging"
	"scenegen/internal/notifications"
	"scenegen/internal/pipeline"
)

// notifyRun announces a finished generate run. Delivery problems are logged
// and never change the command's outcome.
func notifyRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, prompt string, res pipeline.Result, runErr error, started time.Time) {
	svc := notifications.NewService(cfg)
	summary := notifications.RunSummary{
		RunID:     res.RunID,
		Prompt:    prompt,
		Attempts:  res.Attempts,
		VideoPath: firstNonEmpty(res.PublishedPath, res.ArtifactPath),
		Duration:  time.Since(started),
	}
	// The run may have ended because ctx was cancelled; still report it.
	ctx = context.WithoutCancel(ctx)
	var err error
	if runErr != nil {
		err = svc.NotifyRunFailed(ctx, summary, runErr)
	} else {
		err = svc.NotifyRunSucceeded(ctx, summary)
	}
	if err != nil {
		logging.WarnWithContext(logger, "run notification failed", "notification_failed",
			logging.String(logging.FieldRunID, res.RunID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "no completion message was delivered"),
		)
	}
}
