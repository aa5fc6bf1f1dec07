package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/conduit"
)

var version = "dev"

// options holds the persistent flags shared by every command.
type options struct {
	configDir string
	logLevel  string
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "conduit",
		Short:        "Dispatch operations over HTTP with content negotiation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configDir != "" {
				return nil
			}
			dir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("finding user config dir : %w", err)
			}
			opts.configDir = filepath.Join(dir, "conduit")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "config dir (default <user config dir>/conduit)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(serveCmd(opts), journalCmd(opts), configCmd(opts), versionCmd())
	return root
}

func (opts *options) config() (*conduit.Config, error) {
	cfg, err := conduit.LoadConfig(opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s : %w", opts.configDir, err)
	}
	return cfg, nil
}

func (opts *options) logger(cmd *cobra.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return nil, fmt.Errorf("parsing log level %q : %w", opts.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "conduit version %s\n", version)
		},
	}
}
