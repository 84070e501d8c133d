package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenegen/internal/config"
	"scenegen/internal/runlock"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var overrides runOverrides

	cmd := &cobra.Command{
		Use:   "render <script>",
		Short: "Render an existing scene script and publish the video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			script, err := config.ExpandPath(args[0])
			if err != nil {
				return err
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

			res, err := env.orchestrator.RenderScript(cmd.Context(), script)
			if err != nil {
				return fmt.Errorf("render %s: %w", script, err)
			}
			printResult(out, res.RunID, res.Attempts, res.PublishedPath, res.ArtifactPath, res.PreviewPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&overrides.quality, "quality", "q", "", "Render quality: low, medium or high")
	cmd.Flags().StringVar(&overrides.scene, "scene", "", "Scene class to render")
	cmd.Flags().BoolVar(&overrides.noPreview, "no-preview", false, "Skip preview frame extraction")
	return cmd
}
