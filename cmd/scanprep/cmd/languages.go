package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the languages installed for the OCR engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := buildPipeline(GetConfig())
			if err != nil {
				return fmt.Errorf("failed to build pipeline: %w", err)
			}
			langs, err := pl.Recognizer.Languages(cmd.Context())
			if err != nil {
				return err
			}
			for _, l := range langs {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
}
