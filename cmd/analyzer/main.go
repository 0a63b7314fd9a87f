package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envOnly    bool
)

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Bargain price-intelligence engine",
	Long: `Analyzes supplier price history per product, learns recurring price
patterns, detects supplier clearances and records scored buying opportunities.

Examples:
  analyzer serve
  analyzer analyze --all --mode parallel --max-concurrent 8
  analyzer analyze sku-1001 sku-1002 --mode sequential
  analyzer retry 3f1c0d6e-4c1b-4f0e-9a57-0b8f2d1e6a90`,
	SilenceUsage: true,
}

func init() {
	defaultConfig := os.Getenv("BARGAIN_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config/config.yaml"
	}
	defaultEnvOnly := false
	if raw := os.Getenv("BARGAIN_ENV_ONLY"); raw != "" {
		defaultEnvOnly = strings.EqualFold(raw, "true") || raw == "1"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", defaultEnvOnly, "Read configuration from BARGAIN_* env only")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
