package output

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/law-makers/harvest/pkg/models"
)

var csvHeader = []string{
	"key", "link", "query", "name", "address", "phone", "owner", "categories",
	"attempts", "status", "failure_reason",
}

// WriteCSV writes one row per entry ordered by key
func WriteCSV(w io.Writer, results models.Results) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range results.Entries() {
		var p models.Place
		if e.Place != nil {
			p = *e.Place
		}
		reason := ""
		if e.Failure != nil {
			reason = e.Failure.Reason
		}
		row := []string{
			e.Key, e.Link, e.Query,
			p.Name, p.Address, p.Phone, p.Owner, strings.Join(p.Categories, "; "),
			strconv.Itoa(e.Attempts), status(e), reason,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
