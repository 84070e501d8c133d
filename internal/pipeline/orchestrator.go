package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"scenegen/internal/fileutil"
	"scenegen/internal/logging"
	"scenegen/internal/scriptstore"
	"scenegen/internal/services"
	"scenegen/internal/services/manim"
)

// Generator writes a script for prompt and returns its path.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Renderer renders a script and exposes the captured output of its most
// recent attempt.
type Renderer interface {
	Render(ctx context.Context, scriptPath string) (string, error)
	LastAttempt() manim.Attempt
}

// Previewer extracts a still frame from a rendered video.
type Previewer interface {
	ExtractFrame(ctx context.Context, video, dest string) error
}

// Settings are the per-run knobs taken from configuration.
type Settings struct {
	// MaxFixAttempts caps fix cycles; 0 retries until ctx is cancelled.
	MaxFixAttempts int
	Scene          string
	// PublishPath receives a copy of the rendered video; empty skips publishing.
	PublishPath string
	// PreviewPath receives the preview frame; empty or no Previewer skips it.
	PreviewPath string
}

// Result summarises a finished run.
type Result struct {
	RunID         string
	State         State
	Attempts      int
	Fixes         int
	ScriptPath    string
	ArtifactPath  string
	PublishedPath string
	PreviewPath   string
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder journals runs and attempts.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithPreviewer enables preview frame extraction.
func WithPreviewer(p Previewer) Option {
	return func(o *Orchestrator) { o.previewer = p }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithRunIDs overrides run identifier generation (primarily for tests).
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// Orchestrator runs the generate/render/fix loop.
type Orchestrator struct {
	gen       Generator
	renderer  Renderer
	store     scriptstore.Store
	settings  Settings
	recorder  Recorder
	previewer Previewer
	progress  ProgressFunc
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time

	running atomic.Bool
}

// New constructs an orchestrator. store must be the store gen writes to, so
// the failed script can be read back for the fix prompt.
func New(gen Generator, renderer Renderer, store scriptstore.Store, settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:      gen,
		renderer: renderer,
		store:    store,
		settings: settings,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "pipeline")
	return o
}

// Run executes one pipeline run for userPrompt. On failure the returned
// Result still carries the run id and attempt counts.
func (o *Orchestrator) Run(ctx context.Context, userPrompt string) (Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	runID := o.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	result := Result{RunID: runID}

	o.startRun(ctx, logger, RunStart{
		RunID:          runID,
		Prompt:         userPrompt,
		Scene:          o.settings.Scene,
		MaxFixAttempts: o.settings.MaxFixAttempts,
		StartedAt:      o.now(),
	})

	snap, _ := Transition(Snapshot{}, EventStart)
	o.emit(runID, snap, 5, "Starting")
	logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("max_fix_attempts", o.settings.MaxFixAttempts),
	)

	prompt := userPrompt
	for {
		if err := ctx.Err(); err != nil {
			snap, _ = Transition(snap, EventCancelled)
			return o.finish(ctx, logger, snap, result, services.Wrap(services.ErrTransient, "pipeline", "attempt", "run cancelled", err))
		}
		attemptCtx := services.WithAttempt(ctx, snap.Attempt)
		started := o.now()

		o.emit(runID, snap, 20, fmt.Sprintf("Generating script (attempt %d)", snap.Attempt))
		scriptPath, err := o.gen.Generate(services.WithStage(attemptCtx, "generate"), prompt)
		if err != nil {
			snap, _ = Transition(snap, EventGenerationFailed)
			o.recordAttempt(ctx, logger, AttemptRecord{
				RunID: runID, Number: snap.Attempt, Outcome: OutcomeGenerationFailed,
				Error: err.Error(), StartedAt: started, FinishedAt: o.now(),
			})
			return o.finish(ctx, logger, snap, result, err)
		}
		result.ScriptPath = scriptPath
		snap, _ = Transition(snap, EventGenerated)

		o.emit(runID, snap, 55, fmt.Sprintf("Rendering video (attempt %d)", snap.Attempt))
		artifact, renderErr := o.renderer.Render(services.WithStage(attemptCtx, "render"), scriptPath)
		last := o.renderer.LastAttempt()
		record := AttemptRecord{
			RunID: runID, Number: snap.Attempt, ScriptPath: scriptPath,
			ExitCode: last.ExitCode, Stderr: last.Stderr, StartedAt: started,
		}

		if renderErr == nil {
			snap, _ = Transition(snap, EventRendered)
			record.Outcome = OutcomeRendered
			record.FinishedAt = o.now()
			o.recordAttempt(ctx, logger, record)
			result.ArtifactPath = artifact
			return o.complete(ctx, logger, snap, result)
		}

		record.Error = renderErr.Error()
		record.FinishedAt = o.now()
		if !Retryable(renderErr) {
			snap, _ = Transition(snap, EventRenderFatal)
			record.Outcome = OutcomeRenderFatal
			o.recordAttempt(ctx, logger, record)
			return o.finish(ctx, logger, snap, result, renderErr)
		}

		snap, _ = Transition(snap, EventRenderFailed)
		record.Outcome = OutcomeRenderFailed
		o.recordAttempt(ctx, logger, record)
		lastError := failureText(last.Stderr, renderErr)

		if !CanRetry(snap, o.settings.MaxFixAttempts) {
			snap, _ = Transition(snap, EventLimitReached)
			limitErr := &RetryLimitError{Attempts: snap.Attempt, Fixes: snap.Fixes, LastError: lastError}
			return o.finish(ctx, logger, snap, result, limitErr)
		}

		previous, err := o.store.Latest(ctx)
		if err != nil {
			logging.WarnWithContext(logger, "failed script unavailable for fix prompt", "fix_prompt_degraded",
				logging.Error(err),
				logging.String(logging.FieldImpact, "fix prompt omits the previous code"),
			)
		}
		prompt = BuildFixPrompt(userPrompt, lastError, previous.Content)
		o.emit(runID, snap, 5, fmt.Sprintf("Render failed, retrying (attempt %d)", snap.Attempt+1))
		snap, _ = Transition(snap, EventRetry)
		logging.WarnWithContext(logger, "render failed; requesting fix", "render_retry",
			logging.Int("next_attempt", snap.Attempt),
			logging.String("last_error", firstLine(lastError)),
			logging.String(logging.FieldErrorHint, "the renderer stderr is sent back to the llm"),
			logging.String(logging.FieldImpact, "run continues with a corrected script"),
		)
	}
}

// RenderScript renders an existing script once, without generation or
// retries, and publishes the result like a successful run.
func (o *Orchestrator) RenderScript(ctx context.Context, scriptPath string) (Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	runID := o.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	result := Result{RunID: runID, ScriptPath: scriptPath}

	snap := Snapshot{State: StateRendering, Attempt: 1}
	o.emit(runID, snap, 55, "Rendering video")
	artifact, err := o.renderer.Render(services.WithStage(services.WithAttempt(ctx, 1), "render"), scriptPath)
	if err != nil {
		snap.State = StateFailed
		result.State, result.Attempts = snap.State, snap.Attempt
		o.emit(runID, snap, 0, "Render failed")
		return result, err
	}
	snap.State = StateSucceeded
	result.ArtifactPath = artifact
	return o.publish(ctx, logger, snap, result)
}

func (o *Orchestrator) complete(ctx context.Context, logger *slog.Logger, snap Snapshot, result Result) (Result, error) {
	result, err := o.publish(ctx, logger, snap, result)
	return o.finish(ctx, logger, snap, result, err)
}

func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, snap Snapshot, result Result) (Result, error) {
	result.State, result.Attempts, result.Fixes = snap.State, snap.Attempt, snap.Fixes
	video := result.ArtifactPath
	if dest := o.settings.PublishPath; dest != "" {
		if err := fileutil.CopyFileVerified(result.ArtifactPath, dest); err != nil && !errors.Is(err, fileutil.ErrSameFile) {
			return result, services.Wrap(services.ErrTransient, "publish", "copy video", dest, err)
		}
		result.PublishedPath = dest
		video = dest
	}
	if o.previewer != nil && o.settings.PreviewPath != "" {
		if err := o.previewer.ExtractFrame(services.WithStage(ctx, "preview"), video, o.settings.PreviewPath); err != nil {
			logging.WarnWithContext(logger, "preview extraction failed", "preview_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check render.ffmpeg_binary or set render.preview = false"),
				logging.String(logging.FieldImpact, "video is available without a preview image"),
			)
		} else {
			result.PreviewPath = o.settings.PreviewPath
		}
	}
	o.emit(result.RunID, snap, 100, "Done")
	logger.Info("video ready",
		logging.String(logging.FieldEventType, "run_succeeded"),
		logging.String("artifact", result.ArtifactPath),
		logging.String("published", result.PublishedPath),
		logging.Int("attempts", snap.Attempt),
	)
	return result, nil
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, snap Snapshot, result Result, runErr error) (Result, error) {
	result.State, result.Attempts, result.Fixes = snap.State, snap.Attempt, snap.Fixes
	finish := RunFinish{
		RunID:         result.RunID,
		State:         snap.State,
		Attempts:      snap.Attempt,
		Fixes:         snap.Fixes,
		ArtifactPath:  result.ArtifactPath,
		PublishedPath: result.PublishedPath,
		FinishedAt:    o.now(),
	}
	if runErr != nil {
		finish.ErrorCode = ErrorCode(runErr)
		finish.Error = runErr.Error()
		if snap.State != StateFailed {
			finish.State = StateFailed
			result.State = StateFailed
		}
		o.emit(result.RunID, snap, 0, "Error: "+firstLine(runErr.Error()))
		logging.ErrorWithContext(logger, "pipeline run failed", "run_failed",
			logging.Error(runErr),
			logging.String(logging.FieldErrorCode, finish.ErrorCode),
			logging.Int("attempts", snap.Attempt),
		)
	}
	if o.recorder != nil {
		// Journal even when ctx was cancelled mid-run.
		if err := o.recorder.FinishRun(context.WithoutCancel(ctx), finish); err != nil {
			logger.Warn("history finish failed", logging.Error(err))
		}
	}
	return result, runErr
}

func (o *Orchestrator) startRun(ctx context.Context, logger *slog.Logger, run RunStart) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.StartRun(ctx, run); err != nil {
		logger.Warn("history start failed", logging.Error(err))
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, logger *slog.Logger, rec AttemptRecord) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordAttempt(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("history attempt failed", logging.Error(err), logging.Int(logging.FieldAttempt, rec.Number))
	}
}

func (o *Orchestrator) emit(runID string, snap Snapshot, percent int, message string) {
	if o.progress == nil {
		return
	}
	o.progress(Progress{RunID: runID, State: snap.State, Attempt: snap.Attempt, Percent: percent, Message: message})
}

// ErrorCode extends services.ErrorCode with pipeline-specific codes.
func ErrorCode(err error) string {
	if errors.Is(err, ErrRetryLimitExceeded) {
		return "retry_limit"
	}
	return services.ErrorCode(err)
}

// failureText prefers the renderer's stderr and falls back to the error text.
func failureText(stderr string, err error) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
