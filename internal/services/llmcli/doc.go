// Package llmcli generates scene scripts by shelling out to an LLM
// command-line tool.
//
// # Prompt delivery
//
// The command template is an argument list. When any argument contains the
// {prompt} placeholder the composed prompt is substituted into it and the
// process gets no stdin; otherwise the arguments are used verbatim and the
// prompt is written to stdin, which is then closed.
//
// # Output
//
// Stdout is decoded leniently, cleaned with package sanitize, and written
// through a scriptstore.Store, replacing the previous script.
//
// # Errors
//
// ErrCommandNotFound and ErrCommandFailed (carried by *CommandError with the
// exit code and stderr) and sanitize.ErrEmptyScript cover the failure modes.
// None of them are retried by the pipeline.
package llmcli
