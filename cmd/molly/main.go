// Package main provides the entry point for the Molly voice recruiting assistant.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "molly",
	Short: "Molly voice recruiting assistant",
	Long:  "Molly bridges a realtime voice conversation to a Bullhorn candidate search, running the searches the agent asks for and feeding the results back into the conversation.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
