// elements.go — shared DOM helpers (selector synthesis, visibility,
// interactive-element extraction) used by the Page Analyzer, Cookie
// Consent State Machine, and Popup Handler so the
// golang.org/x/net/html tree-walk isn't duplicated three times.
package domutil

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Kind classifies an interactive element (§4.6: "buttons, inputs (incl.
// hidden), links (with href), selects, textareas").
type Kind string

const (
	KindButton   Kind = "button"
	KindInput    Kind = "input"
	KindLink     Kind = "link"
	KindSelect   Kind = "select"
	KindTextarea Kind = "textarea"
)

// Element is one interactive node extracted from a DOM snapshot.
type Element struct {
	Kind      Kind
	Tag       string
	Type      string // input type attribute, if any
	Text      string
	AriaLabel string
	Name      string
	Href      string
	Selector  string
	Hidden    bool
	Required  bool
}

var interactiveTags = map[string]Kind{
	"button":   KindButton,
	"input":    KindInput,
	"a":        KindLink,
	"select":   KindSelect,
	"textarea": KindTextarea,
}

// ParseInteractiveElements walks htmlText and returns every interactive
// node in document order (§4.6 step a). Hidden elements are included
// (callers filter per their own needs — the accessibility summary
// explicitly flags them).
func ParseInteractiveElements(htmlText string) ([]Element, error) {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	var elements []Element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if kind, ok := interactiveTags[n.Data]; ok {
				elements = append(elements, buildElement(n, kind))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return elements, nil
}

func buildElement(n *html.Node, kind Kind) Element {
	e := Element{Kind: kind, Tag: n.Data}
	attrs := attrMap(n)

	e.Type = attrs["type"]
	e.AriaLabel = attrs["aria-label"]
	e.Name = attrs["name"]
	e.Href = attrs["href"]
	e.Text = strings.TrimSpace(textContent(n))
	e.Hidden = isHiddenNode(n, attrs)
	e.Required = attrs["required"] != "" || attrs["aria-required"] == "true"
	e.Selector = BuildSelector(n, attrs, kind)
	return e
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}

func textContent(n *html.Node) string {
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

// isHiddenNode reports whether n is hidden via the hidden attribute,
// display:none/visibility:hidden inline style, or input type="hidden"
// (§4.6 "inputs (incl. hidden)").
func isHiddenNode(n *html.Node, attrs map[string]string) bool {
	if _, ok := attrs["hidden"]; ok {
		return true
	}
	if attrs["type"] == "hidden" {
		return true
	}
	style := attrs["style"]
	if strings.Contains(style, "display:none") || strings.Contains(style, "display: none") {
		return true
	}
	if strings.Contains(style, "visibility:hidden") || strings.Contains(style, "visibility: hidden") {
		return true
	}
	return attrs["aria-hidden"] == "true"
}

// BuildSelector synthesizes a best-effort CSS-ish selector for n,
// following §4.6's exact priority chain: #id → [data-testid] →
// [data-id] → href for links → [name] → [placeholder] → type for
// inputs → [aria-label] for buttons → :has-text("…") → nth-of-type.
func BuildSelector(n *html.Node, attrs map[string]string, kind Kind) string {
	if id := attrs["id"]; id != "" {
		return "#" + id
	}
	if v := attrs["data-testid"]; v != "" {
		return `[data-testid="` + v + `"]`
	}
	if v := attrs["data-id"]; v != "" {
		return `[data-id="` + v + `"]`
	}
	if kind == KindLink {
		if href := attrs["href"]; href != "" {
			return n.Data + `[href="` + href + `"]`
		}
	}
	if v := attrs["name"]; v != "" {
		return n.Data + `[name="` + v + `"]`
	}
	if v := attrs["placeholder"]; v != "" {
		return n.Data + `[placeholder="` + v + `"]`
	}
	if kind == KindInput {
		if t := attrs["type"]; t != "" {
			return n.Data + `[type="` + t + `"]`
		}
	}
	if kind == KindButton {
		if v := attrs["aria-label"]; v != "" {
			return n.Data + `[aria-label="` + v + `"]`
		}
	}
	if text := strings.TrimSpace(textContent(n)); text != "" {
		return n.Data + `:has-text("` + text + `")`
	}
	return n.Data + ":nth-of-type(" + strconv.Itoa(nthOfType(n)) + ")"
}

// nthOfType is a best-effort 1-based sibling index among same-tag
// siblings, the last-resort disambiguator in the priority chain.
func nthOfType(n *html.Node) int {
	if n.Parent == nil {
		return 1
	}
	idx := 1
	for sib := n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib == n {
			return idx
		}
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			idx++
		}
	}
	return idx
}
