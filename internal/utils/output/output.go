// Package output writes harvest results as JSON, CSV, an HTML report or a
// Markdown report, chosen by file extension.
package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/harvest/pkg/models"
)

// Format is an output encoding
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

// FormatFor picks the format from a file extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use .json, .csv, .html or .md)", filepath.Ext(path))
	}
}

// Write encodes results to w
func Write(w io.Writer, format Format, results models.Results) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, results)
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatHTML:
		return WriteHTML(w, results)
	case FormatMarkdown:
		return WriteMarkdown(w, results)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Save writes results to path in the format its extension names
func Save(results models.Results, path string) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, format, results); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteFailed lists the link of every failed entry, one per line, so the
// run can be retried later
func WriteFailed(w io.Writer, results models.Results) error {
	for _, key := range results.Failed() {
		if _, err := fmt.Fprintln(w, results[key].Link); err != nil {
			return err
		}
	}
	return nil
}

// status summarises one entry for tabular formats
func status(e models.ResultEntry) string {
	if e.OK() {
		return "ok"
	}
	if e.Failure != nil {
		return "failed (" + string(e.Failure.Kind) + ")"
	}
	return "failed"
}
