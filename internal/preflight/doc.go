// Package preflight checks that the directories and external commands a run
// depends on are usable before the pipeline starts.
//
// The generate command calls RunAll and refuses to start when a required
// check fails, so a missing renderer is reported before the LLM is paid for a
// script nobody can render. The doctor command prints every result.
package preflight
