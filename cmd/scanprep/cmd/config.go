package cmd

import (
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Long: `Print the configuration after merging defaults, the config file,
SCANPREP_* environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := GetConfig().YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return c
}
