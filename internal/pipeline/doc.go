// Package pipeline drives one scene run: generate a script, render it, and on
// a render failure ask the LLM for a corrected script, up to a ceiling of fix
// cycles.
//
// The loop is modelled as an explicit State machine whose Transition
// function is pure, so retry-ceiling edge cases are tested without spawning
// processes. Orchestrator performs the side effects around it: it calls the
// Generator and Renderer, publishes the winning video into the output
// directory, extracts an optional preview frame, reports Progress, and
// journals each attempt through an optional Recorder.
//
// Generation failures end the run. Render failures (non-zero exit, missing
// media directory, missing artifact) are retried with a fix prompt that
// embeds the original request, the renderer's stderr, and the failed script.
// Runs are strictly sequential; an Orchestrator refuses overlapping Run calls.
package pipeline
