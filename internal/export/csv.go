package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteCSV writes one table with a title header row. Numbers stay in their
// plain canonical form so they re-import without locale guessing.
func WriteCSV(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteCSVDir writes every table to dir as <sheet>.csv and returns the paths.
func WriteCSVDir(dir string, tables []Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	paths := make([]string, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(dir, table.FileName("csv"))
		if err := writeCSVFile(path, table); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, table Table) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
