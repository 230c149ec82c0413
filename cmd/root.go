// Package cmd provides the command-line interface for roster.
//
// Configuration sources, highest priority first:
//
//  1. Command-line flags (--port, --host, --log-level)
//  2. ROSTER_<SECTION>_<OPTION> environment variables (ROSTER_SERVER_PORT)
//  3. The configuration file: --config, else ROSTER_CONFIG_FILE, else
//     .roster.yml in the working directory
//  4. Built-in defaults
package cmd

import (
	"fmt"
	"os"

	"github.com/conneroisu/roster/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable holding a config file path.
const ConfigFileEnv = "ROSTER_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Serve the class roster with shared, typed application state",
	Long: `roster serves a small class website: a home page, the teacher, the
student list and a shared counter. Every handler reads and writes the same
typed state store, so concurrent requests see consistent values.

Quick Start:
  roster serve                  Start the server on 127.0.0.1:8088
  roster serve -p 9000          Start on another port
  roster config show            Print the effective configuration
  roster version                Print build information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .roster.yml, can also use "+ConfigFileEnv+" env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points the global viper at the configuration file and enables
// environment overrides. A missing file is not an error; defaults apply.
func initConfig() {
	configureViper(viper.GetViper(), cfgFile, os.Getenv(ConfigFileEnv))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func configureViper(v *viper.Viper, flagFile, envFile string) {
	switch {
	case flagFile != "":
		v.SetConfigFile(flagFile)
	case envFile != "":
		v.SetConfigFile(envFile)
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".roster")
	}

	config.BindEnv(v)
}
