package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var cfgPath string
	rootCmd := &cobra.Command{
		Use:           "sentinel",
		Short:         "RiskSentinel - facultative reinsurance underwriting pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath(), "Path to config.yaml")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(pipelineCmd(&cfgPath))
	rootCmd.AddCommand(summaryCmd(&cfgPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
