package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mobidash/importd/internal/core"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Manage the Google Sheets source",
}

var sheetsConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the spreadsheet configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient(cmd)

		if cmd.Flags().Changed("corridas") || cmd.Flags().Changed("metas") {
			rides, _ := cmd.Flags().GetString("corridas")
			targets, _ := cmd.Flags().GetString("metas")
			cfg := core.SheetsConfig{SpreadsheetRides: rides, SpreadsheetTargets: targets}
			if err := c.SaveSheetsConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Println("Configuration saved.")
			return nil
		}

		cfg, err := c.SheetsConfig(cmd.Context())
		if err != nil {
			return err
		}
		if cfg == nil {
			fmt.Println("Not configured. Set spreadsheet ids with --corridas and --metas.")
			return nil
		}
		fmt.Println("corridas:", orDash(cfg.SpreadsheetRides))
		fmt.Println("metas:   ", orDash(cfg.SpreadsheetTargets))
		return nil
	},
}

var sheetsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the configured spreadsheets and import them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		outcomes, err := getClient(cmd).SyncSheets(cmd.Context(), force)
		if err != nil {
			return err
		}

		failed := false
		for _, t := range core.ImportTypes() {
			outcome, ok := outcomes[t]
			if !ok {
				continue
			}
			if outcome.Success {
				if outcome.Duplicate {
					fmt.Printf("%s: unchanged, skipped\n", t)
					continue
				}
				fmt.Printf("%s: imported %d rows", t, outcome.Imported)
				if outcome.Errors > 0 {
					fmt.Printf(", %d rejected", outcome.Errors)
				}
				fmt.Println()
				continue
			}
			failed = true
			fmt.Printf("%s: failed: %s\n", t, outcome.Error)
		}
		if failed {
			return errors.New("one or more sheets failed to sync")
		}
		return nil
	},
}

func init() {
	sheetsConfigCmd.Flags().String("corridas", "", "Spreadsheet id for the rides sheet")
	sheetsConfigCmd.Flags().String("metas", "", "Spreadsheet id for the targets sheet")
	sheetsSyncCmd.Flags().Bool("force", false, "Re-import sheets even when their content is unchanged")
	sheetsCmd.AddCommand(sheetsConfigCmd, sheetsSyncCmd)
	rootCmd.AddCommand(sheetsCmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
