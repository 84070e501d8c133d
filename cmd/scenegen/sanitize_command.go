package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scenegen/internal/sanitize"
)

func newSanitizeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:         "sanitize [file]",
		Short:       "Extract a runnable script from raw LLM output",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 1 && args[0] != "-" {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			cleaned, err := sanitize.Clean(string(raw))
			if err != nil {
				return err
			}
			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), cleaned)
				return err
			}
			if err := os.WriteFile(output, []byte(cleaned), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the cleaned script to a file instead of stdout")
	return cmd
}
