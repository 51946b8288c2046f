// Package importer bulk-loads journal entries from exported files. It
// extracts plain text from PDF and HTML exports, splits it into entries,
// and queues each one for analysis.
package importer

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ExtractFile returns the plain text of the file at path, dispatching on
// extension. Unrecognized extensions are read as plain text.
func ExtractFile(path string, r io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".html", ".htm":
		return extractHTML(r)
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}
}

// extractPDF pulls the plain text out of a PDF file. The pdf library needs
// a seekable file, so it reopens by path rather than using the reader.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractHTML strips markup and returns the visible text, with block
// elements separated by blank lines so entry splitting still works.
func extractHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var buf strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "article", "section":
				buf.WriteString("\n\n")
			}
		case html.TextNode:
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return buf.String(), nil
}

// SplitEntries breaks extracted text into journal entries on blank-line
// boundaries, dropping fragments too short to carry any signal.
func SplitEntries(text string) []string {
	var entries []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(collapseWhitespace(block))
		if len(block) < minEntryLen {
			continue
		}
		entries = append(entries, block)
	}
	return entries
}

// minEntryLen filters out stray headings and page numbers.
const minEntryLen = 12

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
