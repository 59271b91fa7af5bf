package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "hoverfocus",
		Short: "hoverfocus - focus follows mouse for X11",
		Long: `hoverfocus gives any X11 desktop focus-follows-mouse behavior: hovering
a window focuses it, no click required.

Features:
  • Poll-based focus engine with idempotent dispatch
  • Optional allow-list integration with tiling window managers
  • Class-based ignore and pause rules
  • Optional focus-change history (sqlite)
  • Optional introspection API with a live event stream`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/hoverfocus/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("managed-list", "", "path to a managed window list file")
	rootCmd.PersistentFlags().Int("interval", 0, "tick interval in milliseconds")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("managed_list", rootCmd.PersistentFlags().Lookup("managed-list"))
	viper.BindPFlag("interval_ms", rootCmd.PersistentFlags().Lookup("interval"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}
