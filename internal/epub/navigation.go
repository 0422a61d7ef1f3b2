package epub

import (
	"fmt"
	"strings"
)

// generateNavigation creates the nav.xhtml navigation document.
func (b *Builder) generateNavigation() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="`)
	sb.WriteString(b.book.Language)
	sb.WriteString(`">
<head>
  <title>`)
	sb.WriteString(escapeXML(b.book.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="styles/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Contenido</h1>
    <ol>
`)
	for _, ch := range b.chapters {
		fmt.Fprintf(&sb, "      <li><a href=\"%s\">%s</a></li>\n", chapterHref(ch), escapeXML(formatTitle(ch)))
	}
	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)
	return sb.String()
}

// formatTitle prefixes numbered chapters, e.g. "Capítulo 2: Métodos".
func formatTitle(ch Chapter) string {
	if ch.Number <= 0 {
		return ch.Title
	}
	prefix := fmt.Sprintf("Capítulo %d", ch.Number)
	if ch.Title == "" || ch.Title == prefix {
		return prefix
	}
	return prefix + ": " + ch.Title
}

// generateNCX creates the toc.ncx for ePub 2 readers.
func (b *Builder) generateNCX() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="`)
	sb.WriteString(b.identifier)
	sb.WriteString(`"/>
    <meta name="dtb:depth" content="1"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle>
    <text>`)
	sb.WriteString(escapeXML(b.book.Title))
	sb.WriteString(`</text>
  </docTitle>
  <navMap>
`)
	for i, ch := range b.chapters {
		fmt.Fprintf(&sb, "    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i+1, i+1)
		fmt.Fprintf(&sb, "      <navLabel><text>%s</text></navLabel>\n", escapeXML(formatTitle(ch)))
		fmt.Fprintf(&sb, "      <content src=\"%s\"/>\n", chapterHref(ch))
		sb.WriteString("    </navPoint>\n")
	}
	sb.WriteString(`  </navMap>
</ncx>
`)
	return sb.String()
}
