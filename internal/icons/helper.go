package icons

import (
	"context"
	"errors"
	"log"
)

// ErrNoCache is returned by GetIconBlob on a Helper without a Cache.
var ErrNoCache = errors.New("icons: helper has no cache")

const iconGuidelinesURL = "https://developer.mozilla.org/en-US/Apps/Build/Icon_implementation_for_apps#General_icons_for_web_apps"

// Helper is the entry point used by callers that only know a page URI and
// whatever icon metadata they collected for it.
type Helper struct {
	// Cache is required by GetIconBlob only.
	Cache *Cache

	// DevicePixelRatio scales every requested size. Values <= 0 mean 1.
	DevicePixelRatio float64

	Logger *log.Logger
}

func (h *Helper) ratio() float64 {
	if h.DevicePixelRatio <= 0 {
		return 1
	}
	return h.DevicePixelRatio
}

func (h *Helper) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}

// GetIcon returns the URL of the best icon for uri. A target of 0 lets the
// ranking pick its density default.
func (h *Helper) GetIcon(ctx context.Context, uri string, target int, place PlaceIcons, site *WebManifestSite) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	res := Resolve(uri, target, h.ratio(), place, site)
	if res.Deprecated() {
		h.logger().Printf("icons: warning: the %s icons are being used as a fallback only. "+
			"They will be deprecated in the future. See %s", res.Rel, iconGuidelinesURL)
	}
	return res.URL, nil
}

// GetIconBlob is GetIcon followed by a cache lookup, fetching the icon on a
// miss.
func (h *Helper) GetIconBlob(ctx context.Context, uri string, target int, place PlaceIcons, site *WebManifestSite) (CachedIcon, error) {
	if h.Cache == nil {
		return CachedIcon{}, ErrNoCache
	}
	iconURL, err := h.GetIcon(ctx, uri, target, place, site)
	if err != nil {
		return CachedIcon{}, err
	}
	return h.Cache.GetOrFetch(ctx, iconURL)
}
