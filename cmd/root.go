// Package cmd provides the command-line interface for devserve.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--port, --base, etc.)
//  2. Environment variables with a DEVSERVE_ prefix (DEVSERVE_SERVER_PORT)
//  3. A configuration file (.devserve.yml in the working directory, or the
//     path given via --config / DEVSERVE_CONFIG_FILE)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "devserve",
	Short: "A zero-build development server for browser-native TypeScript",
	Long: `Devserve serves a source tree directly to the browser: TypeScript and
TSX files are transpiled per request, imports are rewritten to cache-busted
URLs, and connected pages receive live updates over a websocket when files
change on disk.

Quick Start:
  devserve serve                  Serve the current directory
  devserve serve --root ./src     Serve a specific directory
  devserve config init            Write a starter .devserve.yml`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .devserve.yml, can also use DEVSERVE_CONFIG_FILE env var)")
}

// initConfig wires viper to the config file and environment. A missing or
// unreadable file is not an error: flags and defaults still apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DEVSERVE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".devserve")
	}

	viper.SetEnvPrefix("DEVSERVE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
