package mpob

import (
	"context"
	"errors"
	"strings"

	"palmstat-backend/lib/htmlutil"
)

var ErrNoFrame = errors.New("page has no embedded frame")

// Link is one entry of a report listing.
type Link struct {
	Title string
	URL   string
}

// Links returns the anchors matching selector with their hrefs resolved
// against the page url.
func (p Page) Links(ctx context.Context, selector string) ([]Link, error) {
	doc, err := htmlutil.Parse(p.HTML)
	if err != nil {
		return nil, err
	}

	var out []Link
	for _, a := range htmlutil.GetAnchors(ctx, doc.Find(selector), p.URL) {
		out = append(out, Link{Title: a.Name, URL: a.Href})
	}
	return out, nil
}

// FrameURL returns the target of the page's first iframe. Report pages
// embed their tables this way and link them with "../" prefixes that the
// portal does not resolve, so those are dropped before resolving.
func (p Page) FrameURL() (string, error) {
	doc, err := htmlutil.Parse(p.HTML)
	if err != nil {
		return "", err
	}
	sources := htmlutil.QueryAttr(doc, "iframe[src]", "src")
	if len(sources) == 0 || sources[0] == "" {
		return "", ErrNoFrame
	}
	return htmlutil.ResolveLink(p.URL, strings.ReplaceAll(sources[0], "../", ""))
}

// RequiresLogin reports whether the portal answered with its login form.
func (p Page) RequiresLogin() bool {
	doc, err := htmlutil.Parse(p.HTML)
	if err != nil {
		return false
	}
	return IsLoginPage(doc)
}
