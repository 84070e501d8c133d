package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"scenegen/internal/config"
	"scenegen/internal/history"
	"scenegen/internal/logging"
	"scenegen/internal/pipeline"
	"scenegen/internal/scriptstore"
	"scenegen/internal/services/ffmpeg"
	"scenegen/internal/services/llmcli"
	"scenegen/internal/services/manim"
)

// runOverrides are per-invocation flag values layered over configuration.
type runOverrides struct {
	quality        string
	scene          string
	maxFixAttempts int
	maxFixSet      bool
	noPreview      bool
}

type runEnv struct {
	orchestrator *pipeline.Orchestrator
	history      *history.Store
}

func (e *runEnv) Close() error {
	if e == nil || e.history == nil {
		return nil
	}
	return e.history.Close()
}

func buildRunEnv(ctx context.Context, cfg *config.Config, logger *slog.Logger, overrides runOverrides, out io.Writer) (*runEnv, error) {
	quality, err := manim.ParseQuality(firstNonEmpty(overrides.quality, cfg.Render.Quality))
	if err != nil {
		return nil, err
	}
	scene := firstNonEmpty(strings.TrimSpace(overrides.scene), cfg.Render.Scene)
	if err := config.ValidateScene(scene); err != nil {
		return nil, fmt.Errorf("--scene: %w", err)
	}
	maxFix := cfg.Pipeline.MaxFixAttempts
	if overrides.maxFixSet {
		if overrides.maxFixAttempts < 0 {
			return nil, fmt.Errorf("--max-fix-attempts must be >= 0")
		}
		maxFix = overrides.maxFixAttempts
	}

	store, err := scriptstore.NewFileStore(cfg.ScriptPath())
	if err != nil {
		return nil, err
	}
	generator, err := llmcli.New(llmcli.Config{
		Command:      cfg.LLM.Command,
		SystemPrompt: cfg.SystemPromptFor(scene),
		Timeout:      seconds(cfg.LLM.TimeoutSeconds),
	}, store, llmcli.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	renderer := manim.New(cfg.Render.Binary, scene, quality, cfg.Paths.MediaDir,
		manim.WithLogger(logger),
		manim.WithTimeout(seconds(cfg.Render.TimeoutSeconds)),
	)

	settings := pipeline.Settings{
		MaxFixAttempts: maxFix,
		Scene:          scene,
		PublishPath:    publishedPath(cfg, scene),
	}
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithProgress(progressPrinter(out)),
	}
	if cfg.Render.Preview && !overrides.noPreview {
		settings.PreviewPath = cfg.PreviewPath()
		opts = append(opts, pipeline.WithPreviewer(ffmpeg.New(cfg.Render.FFmpegBinary, ffmpeg.WithLogger(logger))))
	}

	env := &runEnv{}
	if cfg.History.Enabled {
		hist, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_unavailable",
				logging.Error(err),
				logging.String("path", cfg.History.Path),
				logging.String(logging.FieldImpact, "this run is not journaled"),
			)
		} else {
			env.history = hist
			opts = append(opts, pipeline.WithRecorder(hist))
		}
	}
	env.orchestrator = pipeline.New(generator, renderer, store, settings, opts...)
	return env, nil
}

func publishedPath(cfg *config.Config, scene string) string {
	if scene == cfg.Render.Scene {
		return cfg.PublishedVideoPath()
	}
	clone := *cfg
	clone.Render.Scene = scene
	return clone.PublishedVideoPath()
}

func progressPrinter(out io.Writer) pipeline.ProgressFunc {
	return func(p pipeline.Progress) {
		fmt.Fprintf(out, "[%3d%%] %s\n", p.Percent, p.Message)
	}
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
