package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed report.css
var cssStyles string

// markdown is the goldmark renderer for report bodies. GFM supplies the pipe
// tables the daily history uses.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
<main>
{{.Body}}</main>
</body>
</html>
`))

type pageData struct {
	Title string
	CSS   template.CSS
	Body  template.HTML
}

// HTML renders the report as a standalone page with inlined styles.
func (r *Report) HTML() (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(r.Markdown()), &body); err != nil {
		return "", fmt.Errorf("render report body: %w", err)
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, pageData{
		Title: "Phone home census",
		CSS:   template.CSS(cssStyles),
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render report page: %w", err)
	}
	return page.String(), nil
}

// WriteHTML renders the report and writes it to path.
func (r *Report) WriteHTML(path string) error {
	page, err := r.HTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
