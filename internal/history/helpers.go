package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                                         Run
		scene, artifact, published, errCode, errMsg sql.NullString
		startedAt                                   string
		finishedAt                                  sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.Prompt, &scene, &run.MaxFixAttempts, &run.State, &run.Attempts, &run.Fixes,
		&artifact, &published, &errCode, &errMsg, &startedAt, &finishedAt,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Scene = scene.String
	run.ArtifactPath = artifact.String
	run.PublishedPath = published.String
	run.ErrorCode = errCode.String
	run.ErrorMessage = errMsg.String
	if t, err := parseTime(startedAt); err == nil {
		run.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := parseTime(finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout keeps fractional seconds fixed-width so stored timestamps sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
