package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mobidash/importd/internal/core"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent imports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient(cmd)

		if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
			data, err := c.HistoryCSV(cmd.Context())
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := c.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No imports yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tTYPE\tSIZE\tROWS\tERRORS\tSTATUS\tSTARTED")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				e.ID, e.Filename, e.ImportType,
				humanize.Bytes(uint64(e.FileSize)),
				e.SuccessRows, e.ErrorRows,
				statusLabel(e.Status),
				humanize.Time(e.StartedAt))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", core.DefaultHistoryLimit, "Maximum number of entries")
	historyCmd.Flags().Bool("csv", false, "Output the full history as CSV")
	rootCmd.AddCommand(historyCmd)
}

func statusLabel(status string) string {
	switch status {
	case core.StatusCompleted:
		return "ok"
	case core.StatusCompletedWithErrors:
		return "partial"
	case core.StatusFailed:
		return "failed"
	default:
		return status
	}
}
