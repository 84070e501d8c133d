// Package config loads, normalizes, and validates scenegen configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCENEGEN_LLM_COMMAND. The Config type centralizes every knob the pipeline
// and CLI need: the LLM command template and system preamble, the Manim
// binary, scene, and quality, the fix-attempt ceiling, and the output, media,
// and log directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
