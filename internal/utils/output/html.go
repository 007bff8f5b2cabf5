package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/law-makers/harvest/pkg/models"
)

const reportStyle = `body{font-family:system-ui,sans-serif;margin:2rem}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #ddd;padding:.4rem;text-align:left;vertical-align:top}
tr.failed{background:#fff4f4}
.failure{color:#b00020}`

// WriteHTML renders a standalone report with one table row per entry
func WriteHTML(w io.Writer, results models.Results) error {
	return html.Render(w, reportDocument(results))
}

// reportDocument builds the report as a node tree so every value is
// escaped by the renderer
func reportDocument(results models.Results) *html.Node {
	failed := len(results.Failed())

	head := el(atom.Head, nil,
		el(atom.Meta, attrs("charset", "utf-8")),
		el(atom.Title, nil, text("Harvest report")),
		el(atom.Style, nil, text(reportStyle)),
	)

	summary := fmt.Sprintf("%d items, %d succeeded, %d failed. Generated %s.",
		len(results), len(results)-failed, failed, time.Now().UTC().Format(time.RFC3339))

	table := el(atom.Table, nil,
		el(atom.Thead, nil, row(atom.Th, nil,
			"Name", "Address", "Phone", "Owner", "Categories", "Query", "Attempts", "Status")),
	)
	body := el(atom.Tbody, nil)
	for _, e := range results.Entries() {
		body.AppendChild(entryRow(e))
	}
	table.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(el(atom.Html, attrs("lang", "en"),
		head,
		el(atom.Body, nil,
			el(atom.H1, nil, text("Harvest report")),
			el(atom.P, nil, text(summary)),
			table,
		),
	))
	return doc
}

func entryRow(e models.ResultEntry) *html.Node {
	var p models.Place
	if e.Place != nil {
		p = *e.Place
	}

	name := p.Name
	if name == "" {
		name = e.Key
	}
	nameCell := el(atom.Td, nil, el(atom.A, attrs("href", e.Link), text(name)))

	statusCell := el(atom.Td, nil, text(status(e)))
	if e.Failure != nil {
		statusCell.AppendChild(el(atom.Br, nil))
		statusCell.AppendChild(el(atom.Span, attrs("class", "failure"), text(e.Failure.Reason)))
	}

	var rowAttrs []html.Attribute
	if !e.OK() {
		rowAttrs = attrs("class", "failed")
	}
	tr := el(atom.Tr, rowAttrs, nameCell)
	for _, v := range []string{p.Address, p.Phone, p.Owner, strings.Join(p.Categories, ", "), e.Query, strconv.Itoa(e.Attempts)} {
		tr.AppendChild(el(atom.Td, nil, text(v)))
	}
	tr.AppendChild(statusCell)
	return tr
}

func row(cell atom.Atom, a []html.Attribute, values ...string) *html.Node {
	tr := el(atom.Tr, a)
	for _, v := range values {
		tr.AppendChild(el(cell, nil, text(v)))
	}
	return tr
}

func el(a atom.Atom, attr []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attr}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}
