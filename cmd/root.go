package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "entrance-control",
	Short: "Two-factor entrance control with access tokens and face verification",
	Long: `Entrance Control grants or denies entry at a gate by checking a scanned
access token and comparing the presented face with the token holder's
enrolled reference photos. Every attempt is recorded in the audit trail.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
