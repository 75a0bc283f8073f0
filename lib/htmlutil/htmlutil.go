package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("palmstat.lib.htmlutil")

// GetText concatenates the text nodes under node, a <br> counts as a space.
func GetText(node *html.Node) string {
	var out strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			out.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			out.WriteByte(' ')
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	if node != nil {
		walk(node)
	}
	return out.String()
}

// CleanText drops non-printable characters and collapses whitespace runs,
// including non-breaking spaces, into single spaces.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

type Anchor struct {
	Name string
	Href string
}

func followable(href string) bool {
	switch {
	case href == "", strings.HasPrefix(href, "#"):
		return false
	case strings.HasPrefix(strings.ToLower(href), "javascript:"):
		return false
	}
	return true
}

// GetAnchors returns the anchors in sel with hrefs resolved against base
// (left relative when base is nil). Empty, fragment and javascript: hrefs
// are skipped, and a href seen before is only reported once.
func GetAnchors(ctx context.Context, sel *goquery.Selection, base *url.URL) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	seen := map[string]bool{}
	var anchors []Anchor
	sel.Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !followable(href) {
			return
		}
		resolved, err := ResolveLink(base, href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unparsable href")
			return
		}
		if seen[resolved] {
			return
		}
		seen[resolved] = true

		name := CleanText(GetText(a.Get(0)))
		anchors = append(anchors, Anchor{Name: name, Href: resolved})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", resolved),
		))
	})
	return anchors
}

func Parse(rawHtml string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(rawHtml))
}

// QueryAll returns the cleaned text of every node matching selector.
func QueryAll(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, CleanText(s.Text()))
	})
	return out
}

// QueryAttr returns attribute `attr` of every node matching selector that has it.
func QueryAttr(doc *goquery.Document, selector, attr string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		value, ok := s.Attr(attr)
		if ok {
			out = append(out, strings.TrimSpace(value))
		}
	})
	return out
}

// ResolveLink resolves href against base.
func ResolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
