package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "agentforge",
		Short: "AgentForge - Specification-driven code generation pipeline",
		Long: `AgentForge turns a structured specification into reviewed code:
it drives an LLM code generator with bounded retries, extracts the written
artifacts, and publishes them to a GitHub repository as a pull request or
branch update, reporting the outcome as a single structured record.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
