package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/devserve/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage devserve configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .devserve.yml with default settings",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing .devserve.yml")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	const path = ".devserve.yml"

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("rendering default configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Println("Wrote", path)
	return nil
}
