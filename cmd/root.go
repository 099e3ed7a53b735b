package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "shoptalk",
	Short: "Conversational commerce backend for messaging channels",
	Long: `Shoptalk turns inbound customer messages into deterministic
conversation flows for browsing, checkout, and booking, and falls back to
tier-routed LLM reasoning grounded in each tenant's knowledge base when a
message needs free-form handling.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "shoptalk.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
