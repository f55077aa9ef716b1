package infrastructure

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// pageStyle is a print friendly A4 layout for exported documents.
const pageStyle = `@page { size: A4; margin: 18mm 16mm; }
body { font-family: "Helvetica Neue", Arial, sans-serif; font-size: 10.5pt; line-height: 1.45; color: #1f2328; }
h1 { font-size: 20pt; margin: 0 0 4mm; }
h2 { font-size: 13pt; border-bottom: 1px solid #d0d7de; padding-bottom: 1mm; margin-top: 6mm; }
h3 { font-size: 11pt; margin-bottom: 1mm; }
ul { padding-left: 5mm; }
table { border-collapse: collapse; }
td, th { border: 1px solid #d0d7de; padding: 1mm 2mm; }
code { font-family: Menlo, monospace; font-size: 9.5pt; }`

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8" />
<title>{{.Title}}</title>
<style>{{.Style}}</style>
</head>
<body>
<article>{{.Body}}</article>
</body>
</html>
`))

// MarkdownRenderer turns artifact markdown into a standalone HTML page.
// Raw HTML embedded in the markdown is dropped.
type MarkdownRenderer struct {
	engine goldmark.Markdown
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		engine: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithRendererOptions(
				htmlrenderer.WithHardWraps(),
				htmlrenderer.WithXHTML(),
			),
		),
	}
}

func (r *MarkdownRenderer) ToHTML(title, markdown string) (string, error) {
	var body bytes.Buffer
	if err := r.engine.Convert([]byte(strings.TrimSpace(markdown)), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	if strings.TrimSpace(title) == "" {
		title = "Document"
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Title string
		Style template.CSS
		Body  template.HTML
	}{
		Title: title,
		Style: template.CSS(pageStyle),
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return page.String(), nil
}
