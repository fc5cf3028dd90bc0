package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute visible text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

// blocks start a new paragraph.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Pre: true, atom.Blockquote: true, atom.Table: true, atom.Tr: true,
	atom.Br: true, atom.Hr: true, atom.Aside: true, atom.Figure: true, atom.Figcaption: true,
}

const paragraphBreak = "\n\n"

// Content is the readable part of a page.
type Content struct {
	Title string
	Text  string // paragraphs separated by a blank line
}

// Extract returns the title and visible text of body. HTML is parsed; any
// other content type is treated as plain text.
func Extract(contentType string, body []byte) (*Content, error) {
	if isHTML(contentType, body) {
		return extractHTML(body)
	}
	text := normalizeParagraphs(string(body))
	return &Content{Title: firstHeading(text), Text: text}, nil
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return false
	}
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func extractHTML(body []byte) (*Content, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var (
		b       strings.Builder
		title   string
		heading string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode, html.DoctypeNode:
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Title {
				if title == "" {
					title = collapseSpaces(nodeText(n))
				}
				return
			}
			if n.DataAtom == atom.H1 && heading == "" {
				heading = collapseSpaces(nodeText(n))
			}
		}

		block := n.Type == html.ElementNode && blocks[n.DataAtom]
		if block {
			b.WriteString(paragraphBreak)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteString(paragraphBreak)
		}
	}
	walk(doc)

	if title == "" {
		title = heading
	}
	return &Content{Title: title, Text: normalizeParagraphs(b.String())}, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// normalizeParagraphs collapses whitespace inside paragraphs and drops empty ones.
func normalizeParagraphs(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var paras []string
	for _, p := range strings.Split(s, paragraphBreak) {
		if p = collapseSpaces(p); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, paragraphBreak)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstHeading returns the text of a leading markdown "# " heading.
func firstHeading(text string) string {
	first, _, _ := strings.Cut(text, paragraphBreak)
	if rest, ok := strings.CutPrefix(first, "# "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}
