package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mobidash/importd/internal/core"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Upload a file and show its detected structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		importType, err := importTypeFlag(cmd)
		if err != nil {
			return err
		}

		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}

		c := getClient(cmd)
		result, err := c.Upload(cmd.Context(), importType, filepath.Base(path), f)
		if err != nil {
			return err
		}

		p := result.Preview
		fmt.Printf("%s (%s, %d rows)\n\n", result.Filename, humanize.Bytes(uint64(info.Size())), p.TotalRows)
		fmt.Println("Columns:", strings.Join(p.Columns, ", "))
		fmt.Println()

		printMapping(p.DetectedMapping, p.RequiredFields)

		if len(p.SampleData) > 0 {
			fmt.Println()
			printSample(p.Columns, p.SampleData)
		}

		fmt.Printf("\nStaged as %s\n", result.Filepath)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringP("type", "t", "", importTypeUsage())
	_ = previewCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(previewCmd)
}

func importTypeFlag(cmd *cobra.Command) (core.ImportType, error) {
	raw, _ := cmd.Flags().GetString("type")
	return core.ParseImportType(raw)
}

func importTypeUsage() string {
	names := make([]string, 0, 3)
	for _, t := range core.ImportTypes() {
		names = append(names, string(t))
	}
	return "Import type (" + strings.Join(names, ", ") + ")"
}

func printMapping(mapping core.FieldMapping, required []string) {
	req := make(map[string]bool, len(required))
	for _, f := range required {
		req[f] = true
	}

	fields := make([]string, 0, len(mapping))
	for f := range mapping {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tCOLUMN")
	for _, f := range fields {
		name := f
		if req[f] {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, mapping[f])
	}
	for _, f := range required {
		if mapping[f] == "" {
			fmt.Fprintf(w, "%s *\t(unmapped)\n", f)
		}
	}
	w.Flush()
}

func printSample(columns []string, rows []map[string]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = row[col]
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}
