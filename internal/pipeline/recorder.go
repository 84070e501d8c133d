package pipeline

import (
	"context"
	"time"
)

// RunStart describes a run as it begins.
type RunStart struct {
	RunID          string
	Prompt         string
	Scene          string
	MaxFixAttempts int
	StartedAt      time.Time
}

// AttemptRecord describes one generate/render cycle.
type AttemptRecord struct {
	RunID      string
	Number     int
	Outcome    string
	ScriptPath string
	ExitCode   int
	Stderr     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunFinish describes how a run ended.
type RunFinish struct {
	RunID         string
	State         State
	Attempts      int
	Fixes         int
	ArtifactPath  string
	PublishedPath string
	ErrorCode     string
	Error         string
	FinishedAt    time.Time
}

// Attempt outcomes written to the Recorder.
const (
	OutcomeGenerationFailed = "generation_failed"
	OutcomeRenderFailed     = "render_failed"
	OutcomeRenderFatal      = "render_fatal"
	OutcomeRendered         = "rendered"
)

// Recorder journals runs. Recorder errors are logged and never fail a run.
type Recorder interface {
	StartRun(ctx context.Context, run RunStart) error
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	FinishRun(ctx context.Context, run RunFinish) error
}

// Progress is a coarse status update for display.
type Progress struct {
	RunID   string
	State   State
	Attempt int
	Percent int
	Message string
}

// ProgressFunc receives progress updates synchronously from the run loop.
type ProgressFunc func(Progress)
