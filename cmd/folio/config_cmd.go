package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"folio/pkg/config"
	"folio/pkg/logging"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	var logFile bool
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !logFile {
				fmt.Fprintln(a.out, a.resolvedConfigPath())
				return nil
			}
			if err := a.setup(cmd, false); err != nil {
				return err
			}
			fmt.Fprintln(a.out, logging.LogPath(a.cfg))
			return nil
		},
	}
	pathCmd.Flags().BoolVar(&logFile, "log-file", false, "print the log file location instead")
	cmd.AddCommand(pathCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config with the API key masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, false); err != nil {
				return err
			}
			data, err := json.MarshalIndent(a.cfg.Redacted(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective config (file, env and flags) to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, false); err != nil {
				return err
			}
			path := a.resolvedConfigPath()
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			a.logger.Info("config_written", "config_path", path)
			fmt.Fprintf(a.out, "Wrote %s\n", path)
			if err := a.cfg.Validate(); err != nil {
				fmt.Fprintf(a.out, "Note: %v\n", err)
			}
			return nil
		},
	})

	return cmd
}
