package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrt/config"
)

type globalFlags struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "agentrt",
		Short:         "Single-process agent runtime",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "configuration file (YAML)")

	cmd.AddCommand(
		newChatCmd(flags),
		newServeCmd(flags),
		newConfigCmd(flags),
	)

	return cmd
}

// loadConfig reads the configured file, or the defaults when none is set.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	if f.configFile == "" {
		cfg, err := config.Parse(nil)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfig(f.configFile)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", f.configFile, err)
	}

	return cfg, nil
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok (provider=%s model=%s)\n", cfg.Model.Provider, cfg.Model.Name)

			return nil
		},
	})

	return cmd
}
