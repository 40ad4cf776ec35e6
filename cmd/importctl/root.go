package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mobidash/importd/internal/client"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "importctl",
	Short:   "Command-line client for the import service",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().String("server", defaultServer(), "Base URL of the import service")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Request timeout")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func defaultServer() string {
	if url := os.Getenv("IMPORTD_SERVER"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func getClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(server, client.WithTimeout(timeout))
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var validation *client.ValidationError
		if errors.As(err, &validation) && validation.Action != "" {
			fmt.Fprintln(os.Stderr, validation.Action)
		}
		if client.Retryable(err) {
			fmt.Fprintln(os.Stderr, "The request can be retried safely.")
		}
		return 1
	}
	return 0
}
