package icons

import (
	"net/url"
	"strconv"
)

// ResolutionFragment is the URL fragment key asking the renderer for a
// pre-scaled raster of a multi-resolution favicon.
const ResolutionFragment = "-moz-resolution"

// Source identifies which icon source produced a resolution.
type Source string

const (
	SourceWebManifest Source = "web-manifest"
	SourceMetaTags    Source = "meta-tags"
	SourceFavicon     Source = "favicon"
)

// Resolution is the outcome of source selection.
type Resolution struct {
	URL    string
	Source Source
	Rel    string
}

// Deprecated reports whether the chosen icon used a deprecated relation.
func (r Resolution) Deprecated() bool {
	return Candidate{URI: r.URL, Rel: r.Rel}.Deprecated()
}

// BestIconFromWebManifest returns the manifest icon closest to target,
// resolved against the manifest URL. When no icon declares a usable size
// the first icon is returned.
func BestIconFromWebManifest(site *WebManifestSite, target int, ratio float64) (string, bool) {
	if site == nil || site.WebManifestURL == "" || site.WebManifest == nil {
		return "", false
	}
	manifestIcons := site.WebManifest.Icons
	if len(manifestIcons) == 0 {
		return "", false
	}

	table := SizeTable{}
	for _, icon := range manifestIcons {
		for _, token := range icon.Sizes.Tokens() {
			n, ok := ParseEdgeLength(token)
			if !ok {
				continue
			}
			table[n] = Candidate{URI: icon.Src}
		}
	}

	src := manifestIcons[0].Src
	if best, ok := table.Best(target, ratio); ok {
		src = best.URI
	}

	base, err := url.Parse(site.WebManifestURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// BestIconFromMetaTags returns the page icon closest to target. URIs are
// returned as declared. When no icon declares a usable size the first icon
// is returned.
func BestIconFromMetaTags(icons PlaceIcons, target int, ratio float64) (Candidate, bool) {
	if len(icons) == 0 {
		return Candidate{}, false
	}
	if best, ok := GetSizes(icons).Best(target, ratio); ok {
		return best, true
	}
	return Candidate{URI: icons[0].URI, Rel: icons[0].Rel}, true
}

// Resolve picks an icon for uri. target is scaled by ratio (1 when <= 0)
// before ranking. It always succeeds: with no declared icon it falls back
// to the origin's /favicon.ico.
func Resolve(uri string, target int, ratio float64, place PlaceIcons, site *WebManifestSite) Resolution {
	if ratio <= 0 {
		ratio = 1
	}
	scaled := float64(target) * ratio
	rank := int(scaled)

	if iconURL, ok := BestIconFromWebManifest(site, rank, ratio); ok {
		return Resolution{URL: iconURL, Source: SourceWebManifest}
	}

	if c, ok := BestIconFromMetaTags(place, rank, ratio); ok {
		return Resolution{URL: c.URI, Source: SourceMetaTags, Rel: c.Rel}
	}

	return Resolution{URL: faviconURL(uri, scaled), Source: SourceFavicon}
}

// ResolveIconURL is Resolve returning only the URL.
func ResolveIconURL(uri string, target int, ratio float64, place PlaceIcons, site *WebManifestSite) string {
	return Resolve(uri, target, ratio, place, site).URL
}

func faviconURL(uri string, scaled float64) string {
	origin := ""
	if u, err := url.Parse(uri); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}

	iconURL := origin + "/favicon.ico"
	if scaled > 0 {
		s := strconv.FormatFloat(scaled, 'f', -1, 64)
		iconURL += "#" + ResolutionFragment + "=" + s + "," + s
	}
	return iconURL
}
