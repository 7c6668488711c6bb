package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "billing-relay",
	Short: "Collects account invoices, merges their PDFs and mails the bundles",
	Long: "billing-relay lists invoices for each configured account, downloads and merges their PDFs " +
		"per category, and mails one bundle per destination address.",
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
