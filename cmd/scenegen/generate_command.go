package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"scenegen/internal/config"
	"scenegen/internal/preflight"
	"scenegen/internal/runlock"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var promptFile string
	var overrides runOverrides

	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate, render, and publish a scene from a text prompt",
		Long: `Generate asks the configured LLM command for a Manim script, renders it,
and on render failure feeds the error back for a corrected script until the
render succeeds or pipeline.max_fix_attempts fix cycles have been spent.

The prompt is taken from the arguments, from --prompt-file ("-" for stdin),
or from stdin when it is not a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			overrides.maxFixSet = cmd.Flags().Changed("max-fix-attempts")

			prompt, err := readPrompt(args, promptFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if strings.TrimSpace(prompt) == "" {
				return errors.New("prompt is empty; pass it as arguments, with --prompt-file, or on stdin")
			}

			if err := checkReady(cfg, overrides); err != nil {
				return err
			}
			lock, err := runlock.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			logger, err := ctx.runLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			env, err := buildRunEnv(cmd.Context(), cfg, logger, overrides, out)
			if err != nil {
				return err
			}
			defer env.Close()

			started := time.Now()
			res, err := env.orchestrator.Run(cmd.Context(), prompt)
			notifyRun(cmd.Context(), cfg, logger, prompt, res, err, started)
			if err != nil {
				fmt.Fprintf(out, "Run %s failed after %d attempt(s)\n", res.RunID, res.Attempts)
				return err
			}
			printResult(out, res.RunID, res.Attempts, res.PublishedPath, res.ArtifactPath, res.PreviewPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&promptFile, "prompt-file", "f", "", "Read the prompt from a file (\"-\" for stdin)")
	cmd.Flags().StringVarP(&overrides.quality, "quality", "q", "", "Render quality: low, medium or high")
	cmd.Flags().StringVar(&overrides.scene, "scene", "", "Scene class to render")
	cmd.Flags().IntVar(&overrides.maxFixAttempts, "max-fix-attempts", 0, "Fix cycles after failed renders (0 = until interrupted)")
	cmd.Flags().BoolVar(&overrides.noPreview, "no-preview", false, "Skip preview frame extraction")
	return cmd
}

func readPrompt(args []string, promptFile string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		if promptFile != "" {
			return "", errors.New("pass the prompt as arguments or with --prompt-file, not both")
		}
		return strings.Join(args, " "), nil
	}
	switch promptFile {
	case "":
		if isTerminal(stdin) {
			return "", nil
		}
		return readAll(stdin)
	case "-":
		return readAll(stdin)
	default:
		path, err := config.ExpandPath(promptFile)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		return string(data), nil
	}
}

func readAll(r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// checkReady runs preflight and refuses to start when a required check fails.
func checkReady(cfg *config.Config, overrides runOverrides) error {
	if scene := strings.TrimSpace(overrides.scene); scene != "" {
		if err := config.ValidateScene(scene); err != nil {
			return fmt.Errorf("--scene: %w", err)
		}
	}
	effective := *cfg
	if overrides.noPreview {
		effective.Render.Preview = false
	}
	failed := preflight.Failed(preflight.RunAll(&effective))
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Detail))
	}
	return fmt.Errorf("preflight failed (run `scenegen doctor` for details): %s", strings.Join(parts, "; "))
}

func printResult(out io.Writer, runID string, attempts int, published, artifact, preview string) {
	video := published
	if video == "" {
		video = artifact
	}
	fmt.Fprintf(out, "Video: %s\n", video)
	if preview != "" {
		fmt.Fprintf(out, "Preview: %s\n", preview)
	}
	fmt.Fprintf(out, "Run: %s (%d attempt(s))\n", runID, attempts)
}
