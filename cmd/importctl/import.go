package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mobidash/importd/internal/session"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upload a file and run the import",
	Long: `Upload a file, apply the detected column mapping and commit the import.
Use --map to override the detected mapping, for example:

  importctl import corridas.xlsx --type corridas --map usuario_nome=Cliente`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		importType, err := importTypeFlag(cmd)
		if err != nil {
			return err
		}
		overrides, err := mappingOverrides(cmd)
		if err != nil {
			return err
		}

		s := session.New(getClient(cmd), importType)
		if err := s.SelectFile(args[0]); err != nil {
			return err
		}

		preview, err := s.RequestPreview(cmd.Context())
		if err != nil {
			return err
		}
		for field, column := range overrides {
			if err := s.SetMapping(field, column); err != nil {
				return err
			}
		}

		if !s.MappingComplete() {
			printMapping(s.Mapping(), preview.RequiredFields)
			return errors.New("required fields are unmapped, assign them with --map field=column")
		}

		outcome, err := s.Commit(cmd.Context())
		if err != nil {
			return err
		}

		if outcome.Duplicate {
			fmt.Println("Already imported, returning the recorded outcome.")
		}
		fmt.Printf("Imported %d rows", outcome.Imported)
		if outcome.Errors > 0 {
			fmt.Printf(", %d rows rejected", outcome.Errors)
		}
		fmt.Printf(" (log #%d)\n", outcome.ImportLogID)
		for _, detail := range outcome.ErrorDetails {
			fmt.Println(" ", detail)
		}
		if !outcome.Success {
			return errors.New(outcome.Error)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringP("type", "t", "", importTypeUsage())
	importCmd.Flags().StringArrayP("map", "m", nil, "Override a field mapping as field=column (repeatable)")
	_ = importCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(importCmd)
}

func mappingOverrides(cmd *cobra.Command) (map[string]string, error) {
	raw, _ := cmd.Flags().GetStringArray("map")
	overrides := make(map[string]string, len(raw))
	for _, pair := range raw {
		field, column, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid --map value %q, expected field=column", pair)
		}
		overrides[field] = column
	}
	return overrides, nil
}
