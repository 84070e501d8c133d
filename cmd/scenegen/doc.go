// Package main hosts the scenegen CLI.
//
// The Cobra command tree resolves configuration once, wires the LLM
// generator, Manim renderer, preview extractor, and run history into a
// pipeline.Orchestrator, and prints progress as the run advances. Heavy
// lifting stays in the internal packages; commands here parse input and
// format output.
package main
