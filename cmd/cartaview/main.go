package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗╔═╗╦═╗╔╦╗╔═╗┬  ┬┬┌─┐┬ ┬
  ║  ╠═╣╠╦╝ ║ ╠═╣└┐┌┘│├┤ │││
  ╚═╝╩ ╩╩╚═ ╩ ╩ ╩ └┘ ┴└─┘└┴┘
`

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cartaview",
		Short: "Streaming viewer client for CARTA-compatible image servers",
		Long: `cartaview connects to a CARTA-compatible backend over WebSocket,
streams raster tiles for an astronomy image and serves the composited
view over HTTP.

Features include:

  • Binary ICD protocol over WebSocket
  • Tile compositing with configurable color maps and scale functions
  • Pan, zoom and region editing
  • PNG snapshot and Prometheus metrics endpoints`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cartaview.yaml)")

	rootCmd.AddCommand(
		viewCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// initConfig reads in the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cartaview")
	}

	viper.SetEnvPrefix("CARTAVIEW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}
