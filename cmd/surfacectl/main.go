package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danmuck/surfacekit/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "surfacectl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "surfacectl",
		Short:         "surfacekit host process",
		Long:          "Runs a surfacekit host: presenter, mounting loop, and inspector.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newConfigCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the host with surfaces from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cfgPath)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "config.toml", "host config path")
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "generate or validate host config",
	}

	var output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "write a default config template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVar(&output, "output", "config.toml", "output path for config template")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")

	var input string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "validate an existing config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadHostConfig(input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated %s\n", input)
			return nil
		},
	}
	validateCmd.Flags().StringVar(&input, "input", "config.toml", "config path to validate")

	cmd.AddCommand(initCmd)
	cmd.AddCommand(validateCmd)
	return cmd
}
