package icons

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeprecatedRels are icon relations still accepted as candidates but which
// callers should warn about.
var DeprecatedRels = []string{
	"apple-touch-icon",
	"apple-touch-icon-precomposed",
}

// PlaceIcon is one icon declared by a page, with the raw size tokens found
// in its sizes attribute(s).
type PlaceIcon struct {
	URI   string
	Sizes []string
	Rel   string
}

// PlaceIcons holds the icons declared in a page's meta tags, in document
// order. Order matters: the first entry is the no-size fallback and later
// entries win size collisions.
type PlaceIcons []PlaceIcon

// Candidate is the icon a SizeTable maps a size to.
type Candidate struct {
	URI string
	Rel string
}

// Deprecated reports whether the candidate was declared with a relation kept
// only for compatibility.
func (c Candidate) Deprecated() bool {
	for _, rel := range DeprecatedRels {
		if c.Rel == rel {
			return true
		}
	}
	return false
}

// SizeTable maps an edge length in pixels to the icon declaring it.
type SizeTable map[int]Candidate

// SizeList is the sizes member of a manifest icon. Manifests in the wild use
// either a single space separated string or a list of strings.
type SizeList []string

func (s *SizeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = SizeList{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("sizes must be a string or a list of strings: %w", err)
	}
	*s = list
	return nil
}

// Tokens flattens the list into individual size tokens.
func (s SizeList) Tokens() []string {
	return strings.Fields(strings.Join(s, " "))
}

type ManifestIcon struct {
	Src   string   `json:"src"`
	Sizes SizeList `json:"sizes"`
	Type  string   `json:"type"`
}

// WebManifest carries only the part of a web app manifest used for icon
// selection.
type WebManifest struct {
	Icons []ManifestIcon `json:"icons"`
}

// WebManifestSite pairs a manifest with the URL it was loaded from. Icon
// sources in the manifest are relative to WebManifestURL.
type WebManifestSite struct {
	WebManifestURL string
	WebManifest    *WebManifest
}

// CachedIcon is a fetched icon and its measured edge length in pixels.
type CachedIcon struct {
	Blob []byte
	Size int
}
