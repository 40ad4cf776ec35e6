package main

import (
	"fmt"
	"os"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mobidash/importd/internal/core"
)

var templateCmd = &cobra.Command{
	Use:   "template <type>",
	Short: "Download the spreadsheet template for an import type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		importType, err := core.ParseImportType(args[0])
		if err != nil {
			return err
		}

		data, filename, err := getClient(cmd).DownloadTemplate(cmd.Context(), importType)
		if err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("output")
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}

		fmt.Printf("Wrote %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
		return nil
	},
}

func init() {
	templateCmd.Flags().StringP("output", "o", ".", "Directory to write the template to")
	rootCmd.AddCommand(templateCmd)
}
