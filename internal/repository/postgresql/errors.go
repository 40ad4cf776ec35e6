package postgresql

import "fmt"

// Error wrappers shared by the repositories so database failures carry a
// consistent, greppable prefix.

func buildQueryError(err error) error {
	return fmt.Errorf("build query: %w", err)
}

func execQueryError(err error) error {
	return fmt.Errorf("execute query: %w", err)
}

func scanRowError(err error) error {
	return fmt.Errorf("scan row: %w", err)
}

func collectRowsError(err error) error {
	return fmt.Errorf("collect rows: %w", err)
}
