package payload

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

func parseHTML(body []byte) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// spacedText returns the cleaned text of s with a space between text nodes,
// so that adjacent ball elements do not merge into one number.
func spacedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return validation.CleanText(b.String())
}

// singleSmallInt returns the value of a text holding exactly one 1-2 digit number.
func singleSmallInt(text string) (int, bool) {
	toks := smallIntRe.FindAllString(text, -1)
	if len(toks) != 1 || len(validation.IntTokens(text)) != 1 {
		return 0, false
	}
	ints := validation.IntTokens(toks[0])
	return ints[0], true
}
