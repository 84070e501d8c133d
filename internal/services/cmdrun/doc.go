// Package cmdrun runs external tools to completion and captures their output.
//
// The LLM generator, the Manim renderer, and the ffmpeg preview extractor all
// go through the Executor interface so tests can substitute stubs. Output is
// decoded as UTF-8 with invalid sequences replaced, never rejected, and a
// non-zero exit is reported in Result rather than as an error so callers can
// classify failures themselves.
package cmdrun
