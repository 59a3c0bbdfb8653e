package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

//go:embed ex.config.toml
var configTemplate string

func writeTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(configTemplate), 0o600)
}

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check an ipkchat config file",
	}

	var output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				_, err := io.WriteString(stdout, configTemplate)
				return err
			}
			if err := writeTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "", "destination path (stdout when empty)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Load a config file and check the merged settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(args[0], defaultAppConfig())
			if err != nil {
				return err
			}
			kind, err := cfg.validate()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "ok transport=%s server=%s port=%d\n", kind, cfg.Server, cfg.Port)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
