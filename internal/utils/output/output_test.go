package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/law-makers/harvest/pkg/models"
)

func sampleResults() models.Results {
	return models.Results{
		"https://maps.test/place/b": {
			Key:      "https://maps.test/place/b",
			Link:     "https://maps.test/place/b",
			Query:    "cafes",
			Attempts: 5,
			Failure:  &models.Failure{Kind: models.FailureTransient, Reason: "HTTP 503 <gateway>"},
		},
		"https://maps.test/place/a": {
			Key:      "https://maps.test/place/a",
			Link:     "https://maps.test/place/a",
			Query:    "cafes",
			Attempts: 1,
			Place: &models.Place{
				Name:       "Blue & Co",
				Address:    "12 MG Road",
				Phone:      "+91 80 1234",
				Categories: []string{"Cafe", "Bakery"},
			},
		},
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"out.json":    FormatJSON,
		"out.CSV":     FormatCSV,
		"report.html": FormatHTML,
		"report.htm":  FormatHTML,
		"notes.md":    FormatMarkdown,
		"noext":       FormatJSON,
	}
	for path, want := range tests {
		got, err := FormatFor(path)
		if err != nil {
			t.Errorf("FormatFor(%q) error: %v", path, err)
			continue
		}
		if got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", path, got, want)
		}
	}

	if _, err := FormatFor("out.xlsx"); err == nil {
		t.Error("expected error for .xlsx")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Total     int      `json:"total"`
		Succeeded int      `json:"succeeded"`
		Failed    []string `json:"failed"`
		Entries   []struct {
			Key     string `json:"key"`
			Failure *struct {
				Kind string `json:"kind"`
			} `json:"failure"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Total != 2 || doc.Succeeded != 1 {
		t.Errorf("total/succeeded = %d/%d, want 2/1", doc.Total, doc.Succeeded)
	}
	if len(doc.Failed) != 1 || doc.Failed[0] != "https://maps.test/place/b" {
		t.Errorf("failed = %v", doc.Failed)
	}
	if doc.Entries[0].Key != "https://maps.test/place/a" {
		t.Errorf("entries not ordered by key: first = %s", doc.Entries[0].Key)
	}
	if doc.Entries[1].Failure == nil || doc.Entries[1].Failure.Kind != "transient" {
		t.Error("failure marker missing from failed entry")
	}
}

func TestWriteJSON_EmptyFailedIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, models.Results{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"failed": []`) {
		t.Errorf("expected empty failed array, got %s", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[1][3] != "Blue & Co" || rows[1][7] != "Cafe; Bakery" || rows[1][9] != "ok" {
		t.Errorf("unexpected success row: %v", rows[1])
	}
	if rows[2][9] != "failed (transient)" || rows[2][8] != "5" {
		t.Errorf("unexpected failure row: %v", rows[2])
	}
}

func TestWriteHTML_EscapesValues(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Blue &amp; Co",
		"HTTP 503 &lt;gateway&gt;",
		`<tr class="failed">`,
		`href="https://maps.test/place/a"`,
		"2 items, 1 succeeded, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Harvest report",
		"[Blue & Co](https://maps.test/place/a)",
		"| Name |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Markdown report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "font-family") {
		t.Error("style block leaked into Markdown")
	}
}

func TestWriteFailed(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFailed(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "https://maps.test/place/b\n" {
		t.Errorf("WriteFailed() = %q", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"r.json", "r.csv", "r.html", "r.md"} {
		path := filepath.Join(dir, name)
		if err := Save(sampleResults(), path); err != nil {
			t.Errorf("Save(%s): %v", name, err)
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("Save(%s) produced no output", name)
		}
	}

	if err := Save(sampleResults(), filepath.Join(dir, "r.pdf")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
