package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func configCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the settings in config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg.Settings())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting and save config.yaml",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if _, ok := cfg.Settings()[args[0]]; !ok {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to %v\n", args[0], cfg.Settings()[args[0]])
			return nil
		},
	})
	return cmd
}
