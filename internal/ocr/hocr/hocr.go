// Package hocr reads tesseract's hOCR output back into text lines.
package hocr

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// lineClasses are the hOCR classes tesseract uses for a line of text.
var lineClasses = map[string]bool{
	"ocr_line":      true,
	"ocr_header":    true,
	"ocr_textfloat": true,
	"ocr_caption":   true,
}

// Lines returns the text of every hOCR line in document order, words joined
// by single spaces. Empty lines are dropped.
func Lines(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse hocr: %w", err)
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, lineClasses) {
			if l := lineText(n); l != "" {
				lines = append(lines, l)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return lines, nil
}

// PageText returns the hOCR lines joined by newlines.
func PageText(r io.Reader) (string, error) {
	lines, err := Lines(r)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func lineText(n *html.Node) string {
	var words []string
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(words, " ")
}

func hasClass(n *html.Node, classes map[string]bool) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if classes[c] {
				return true
			}
		}
	}
	return false
}
