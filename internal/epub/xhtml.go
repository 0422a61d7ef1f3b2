package epub

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders chapter bodies as XHTML; ePub readers reject HTML void
// elements without a closing slash.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// generateChapterXHTML converts a chapter's markdown to an XHTML document.
func (b *Builder) generateChapterXHTML(ch Chapter) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(ch.Markdown), &body); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" lang="%s">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`, b.book.Language, escapeXML(ch.Title))

	// Chapters whose text has no heading of its own get one
	if !startsWithHeading(ch.Markdown) {
		if ch.Number > 0 {
			fmt.Fprintf(&sb, "<p class=\"chapter-number\">Capítulo %d</p>\n", ch.Number)
		}
		fmt.Fprintf(&sb, "<h1>%s</h1>\n", escapeXML(ch.Title))
	}
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

func startsWithHeading(md string) bool {
	return strings.HasPrefix(strings.TrimSpace(md), "#")
}
