// Package page discovers the icon sources a web page declares: its
// <link rel=icon> family of tags, og:image style meta tags, and its web app
// manifest.
package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/aizatto/faviconurl/internal/icons"
)

const maxDocumentBytes = 5 << 20

// IconRelValues are the rel tokens that mark a <link> as an icon.
var IconRelValues = []string{
	"icon",
	"apple-touch-icon",
	"apple-touch-icon-precomposed",
}

// MetaImageNames are the meta names/properties whose content is an image
// usable as a last-resort icon.
var MetaImageNames = []string{
	"og:image",
	"twitter:image",
}

// Page holds the icon sources found for a URL.
type Page struct {
	// URL is the document URL after redirects, or its rel=canonical URL
	// when that points at another host. The favicon fallback uses its
	// origin.
	URL   string
	Icons icons.PlaceIcons
	Site  *icons.WebManifestSite
}

// Discoverer fetches pages and their manifests.
type Discoverer struct {
	client    *http.Client
	userAgent string
	logger    *log.Logger
}

// NewDiscoverer returns a Discoverer using client. A nil logger means
// log.Default().
func NewDiscoverer(client *http.Client, userAgent string, logger *log.Logger) *Discoverer {
	if logger == nil {
		logger = log.Default()
	}
	return &Discoverer{client: client, userAgent: userAgent, logger: logger}
}

// ParseURL accepts loose command line input such as "google.com" and turns it
// into an http(s) URL.
func ParseURL(arg string) (*url.URL, error) {
	u, err := url.Parse(arg)
	if err != nil {
		return nil, errors.New("invalid url")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		if u.Scheme != "" {
			return nil, errors.New("URL scheme must be HTTP or HTTPS")
		}

		u.Scheme = "https"
	}

	// handles args like "google.com", where there is no host no scheme
	if u.Host == "" && len(u.Path) != 0 {
		host, path, _ := strings.Cut(u.Path, "/")
		u.Host = host
		u.Path = ""
		if path != "" {
			u.Path = "/" + path
		}
	}

	if u.Host == "" {
		return nil, errors.New("URL has no host")
	}

	return u, nil
}

// Discover loads pageURL and collects its declared icons. A broken manifest
// is logged and skipped; only a failure to load the page itself is returned.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := d.get(ctx, pageURL, "text/html")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if mediaType(resp) != "text/html" {
		return nil, fmt.Errorf("unexpected content-type: %s", resp.Header.Get("Content-Type"))
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	base := resp.Request.URL
	links := getLinks(doc)

	p := &Page{URL: base.String()}
	if canonical, ok := canonicalURL(base, links); ok {
		p.URL = canonical.String()
	}
	p.Icons = placeIcons(base, links)

	for _, link := range links {
		if link.kind != linkManifest {
			continue
		}
		manifestURL, err := base.Parse(link.href)
		if err != nil {
			d.logger.Printf("page: bad manifest href %q: %v", link.href, err)
			break
		}
		manifest, err := d.fetchManifest(ctx, manifestURL.String())
		if err != nil {
			d.logger.Printf("page: %v", err)
			break
		}
		p.Site = &icons.WebManifestSite{WebManifestURL: manifestURL.String(), WebManifest: manifest}
		break
	}

	return p, nil
}

func (d *Discoverer) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", accept)
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while getting %s: %w", rawURL, err)
	}

	// non 200s
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, fmt.Errorf("invalid http status: %s %s (%d)", rawURL, resp.Status, resp.StatusCode)
	}

	return resp, nil
}

func (d *Discoverer) fetchManifest(ctx context.Context, manifestURL string) (*icons.WebManifest, error) {
	resp, err := d.get(ctx, manifestURL, "application/manifest+json, application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch mediaType(resp) {
	case "application/json", "application/manifest+json", "text/json":
	default:
		return nil, fmt.Errorf("unexpected manifest content-type: %s", resp.Header.Get("Content-Type"))
	}

	var manifest icons.WebManifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentBytes)).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest %s: %w", manifestURL, err)
	}
	return &manifest, nil
}

func mediaType(resp *http.Response) string {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}
