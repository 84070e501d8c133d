// Package logging assembles structured slog loggers and formatting helpers used
// across scenegen.
//
// It owns the console/JSON handlers, fans records out to the terminal, the
// log file, and optionally journald, and exposes context-aware helpers so
// pipeline code can automatically tag log lines with run IDs, attempt
// numbers, and stages. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
