package main

import (
	"fmt"
	"os"

	"github.com/RyanNg1403/tieplm/internal/cli"
	"github.com/RyanNg1403/tieplm/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tieplm",
		Short: "Tieplm CLI - ask questions about lecture videos",
		Long: `Tieplm CLI answers questions, summarizes and quizzes over course lecture transcripts.

Environment variables:
  TIEPLM_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)
	cli.BindEnv(rootCmd, "api-url", "TIEPLM_API_URL")

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SessionsCmd())
	rootCmd.AddCommand(client.VideosCmd())
	rootCmd.AddCommand(client.ChaptersCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
