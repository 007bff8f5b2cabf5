package output

import (
	"bytes"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/pkg/models"
)

// WriteMarkdown renders the HTML report and converts it to GitHub
// flavoured Markdown
func WriteMarkdown(w io.Writer, results models.Results) error {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, results); err != nil {
		return err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("style", "title")
	converter.AddRules(md.Rule{
		Filter: []string{"span"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			if !selec.HasClass("failure") {
				return nil
			}
			reason := strings.TrimSpace(selec.Text())
			if reason == "" {
				return nil
			}
			str := "*" + reason + "*"
			return &str
		},
	})

	out, err := converter.ConvertReader(&buf)
	if err != nil {
		return err
	}
	if _, err := out.WriteTo(w); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
