package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"scenegen/internal/config"
	"scenegen/internal/fileutil"
)

func newSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save <destination>",
		Short: "Copy the last published video to another location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			src := cfg.PublishedVideoPath()
			if _, err := os.Stat(src); err != nil {
				return fmt.Errorf("no published video at %s; run `scenegen generate` first", src)
			}
			dest, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				dest = filepath.Join(dest, filepath.Base(src))
			}
			if err := fileutil.CopyFile(src, dest); err != nil {
				if errors.Is(err, fileutil.ErrSameFile) {
					return fmt.Errorf("%s is the published video itself", dest)
				}
				return fmt.Errorf("save video: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
			return nil
		},
	}
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the last published video in the system player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := cfg.PublishedVideoPath()
			if preview {
				target = cfg.PreviewPath()
			}
			if _, err := os.Stat(target); err != nil {
				return fmt.Errorf("nothing to open at %s", target)
			}
			name, openArgs := openerCommand(runtime.GOOS, target)
			if err := startDetached(name, openArgs); err != nil {
				return fmt.Errorf("open %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Open the preview image instead of the video")
	return cmd
}

// openerCommand returns the platform command that hands path to its default application.
func openerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

// startDetached launches the opener without waiting on the player.
var startDetached = func(name string, args []string) error {
	cmd := exec.Command(name, args...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
