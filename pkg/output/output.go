// Package output writes and reads the final shortcut table.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"map_shortcuts/pkg/shortcut"
)

// Format names an output encoding.
type Format string

const (
	CSV    Format = "csv"
	Arrow  Format = "arrow"
	Binary Format = "binary"
)

// Columns is the column order shared by every format.
var Columns = []string{"from_edge", "to_edge", "cost", "via_edge", "final_cell", "inside"}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, Arrow, Binary:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want csv, arrow or binary)", s)
}

// FormatFor picks a format from a file extension, defaulting to CSV.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".arrows", ".ipc":
		return Arrow
	case ".bin", ".sc":
		return Binary
	}
	return CSV
}

// Write stores t at path in the given format.
func Write(path string, format Format, t *shortcut.Table) error {
	if format == Binary {
		return shortcut.WriteBinary(path, t)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	switch format {
	case CSV:
		err = WriteCSV(f, t)
	case Arrow:
		err = WriteArrow(f, t, DefaultBatchRows)
	default:
		err = fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// Read loads a table written by Write, choosing the decoder by extension.
func Read(path string) (*shortcut.Table, error) {
	format := FormatFor(path)
	if format == Binary {
		return shortcut.ReadBinary(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if format == Arrow {
		return ReadArrow(f)
	}
	return ReadCSV(f)
}
