package page

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/aizatto/faviconurl/internal/icons"
)

type linkKind int

const (
	linkIcon linkKind = iota
	linkMetaImage
	linkManifest
	linkCanonical
)

type htmlLink struct {
	kind  linkKind
	href  string
	rel   string
	sizes string
}

// getLinks walks the document collecting every <link> and <meta> that names
// an icon source, in document order.
func getLinks(node *html.Node) []htmlLink {
	if node.Type == html.ElementNode {
		switch node.Data {
		case "link":
			if link, ok := linkFromLinkNode(node); ok {
				return []htmlLink{link}
			}
			return nil
		case "meta":
			if link, ok := linkFromMetaNode(node); ok {
				return []htmlLink{link}
			}
			return nil
		}
	}

	var links []htmlLink
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		links = append(links, getLinks(c)...)
	}
	return links
}

func attr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func linkFromLinkNode(node *html.Node) (htmlLink, bool) {
	href, ok := attr(node, "href")
	if !ok || strings.TrimSpace(href) == "" {
		return htmlLink{}, false
	}
	rel, _ := attr(node, "rel")
	sizes, _ := attr(node, "sizes")

	link := htmlLink{href: strings.TrimSpace(href), sizes: sizes}
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		switch token {
		case "manifest":
			link.kind = linkManifest
			return link, true
		case "canonical":
			link.kind = linkCanonical
			return link, true
		}
		for _, expected := range IconRelValues {
			if token == expected {
				link.kind = linkIcon
				link.rel = token
				return link, true
			}
		}
	}
	return htmlLink{}, false
}

func linkFromMetaNode(node *html.Node) (htmlLink, bool) {
	content, ok := attr(node, "content")
	if !ok || strings.TrimSpace(content) == "" {
		return htmlLink{}, false
	}

	name, _ := attr(node, "name")
	if name == "" {
		name, _ = attr(node, "property")
	}
	for _, expected := range MetaImageNames {
		if strings.EqualFold(name, expected) {
			return htmlLink{kind: linkMetaImage, href: strings.TrimSpace(content)}, true
		}
	}
	return htmlLink{}, false
}

// placeIcons resolves icon links against base. <link> icons come first in
// document order, then meta images. Repeated URIs merge their sizes.
func placeIcons(base *url.URL, links []htmlLink) icons.PlaceIcons {
	var out icons.PlaceIcons
	index := map[string]int{}

	add := func(link htmlLink) {
		u, err := base.Parse(link.href)
		if err != nil {
			return
		}
		uri := u.String()
		if i, ok := index[uri]; ok {
			if link.sizes != "" {
				out[i].Sizes = append(out[i].Sizes, link.sizes)
			}
			return
		}

		icon := icons.PlaceIcon{URI: uri, Rel: link.rel}
		if link.sizes != "" {
			icon.Sizes = []string{link.sizes}
		}
		index[uri] = len(out)
		out = append(out, icon)
	}

	for _, link := range links {
		if link.kind == linkIcon {
			add(link)
		}
	}
	for _, link := range links {
		if link.kind == linkMetaImage {
			add(link)
		}
	}
	return out
}

// canonicalURL returns the page's canonical URL when it names another http(s)
// host. Icon hrefs still resolve against the fetched document.
func canonicalURL(base *url.URL, links []htmlLink) (*url.URL, bool) {
	for _, link := range links {
		if link.kind != linkCanonical {
			continue
		}
		u, err := base.Parse(link.href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, false
		}
		if u.Host == base.Host {
			return nil, false
		}
		return u, true
	}
	return nil, false
}
