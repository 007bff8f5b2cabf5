package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/law-makers/harvest/pkg/models"
)

// document is the JSON export layout
type document struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Total       int                  `json:"total"`
	Succeeded   int                  `json:"succeeded"`
	Failed      []string             `json:"failed"`
	Entries     []models.ResultEntry `json:"entries"`
}

// WriteJSON writes an indented JSON document with entries ordered by key
func WriteJSON(w io.Writer, results models.Results) error {
	failed := results.Failed()
	if failed == nil {
		failed = []string{}
	}
	doc := document{
		GeneratedAt: time.Now().UTC(),
		Total:       len(results),
		Succeeded:   len(results) - len(failed),
		Failed:      failed,
		Entries:     results.Entries(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
