package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aizatto/faviconurl/internal/config"
	"github.com/aizatto/faviconurl/internal/fetch"
	"github.com/aizatto/faviconurl/internal/iconstore"
	"github.com/aizatto/faviconurl/internal/icons"
	"github.com/aizatto/faviconurl/internal/page"
	"github.com/aizatto/faviconurl/internal/telemetry"
)

func main() {
	size := flag.Int("size", 0, "target icon size in CSS pixels (0 picks the density default)")
	blob := flag.Bool("blob", false, "fetch the icon through the cache and report its measured size")
	noCache := flag.Bool("no-cache", false, "keep fetched icons in memory instead of the SQLite cache")
	flag.Parse()

	if err := run(flag.Args(), *size, *blob, *noCache); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(urls []string, size int, blob, noCache bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx, "faviconurl", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer shutdown(ctx)

	logger := log.New(os.Stderr, "", log.LstdFlags)

	var provider icons.StoreProvider = iconstore.NewMemory()
	if blob && !noCache {
		db, err := iconstore.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open icon cache: %w", err)
		}
		defer db.Close()
		provider = db
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:   cfg.FetchTimeout,
		MaxBytes:  cfg.MaxIconBytes,
		UserAgent: cfg.UserAgent,
	})
	helper := &icons.Helper{
		Cache:            icons.NewCache(provider, cfg.StoreName, fetcher, logger),
		DevicePixelRatio: cfg.DevicePixelRatio,
		Logger:           logger,
	}
	defer helper.Cache.Wait()

	discoverer := page.NewDiscoverer(fetch.NewHTTPClient(cfg.FetchTimeout, nil), cfg.UserAgent, logger)

	for _, arg := range urls {
		u, err := page.ParseURL(arg)
		if err != nil {
			fmt.Fprintf(os.Stdout, "%s\n", arg)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		if err := resolve(ctx, discoverer, helper, u.String(), size, blob); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Fprintln(os.Stdout, "")
	}

	return nil
}

func resolve(ctx context.Context, d *page.Discoverer, h *icons.Helper, pageURL string, size int, blob bool) error {
	p, err := d.Discover(ctx, pageURL)
	if err != nil {
		// The favicon fallback still applies to pages we could not read.
		fmt.Fprintf(os.Stderr, "failed to fetch from url: %v\n", err)
		p = &page.Page{URL: pageURL}
	}

	if p.URL == pageURL {
		fmt.Fprintf(os.Stdout, "%s\n", pageURL)
	} else {
		fmt.Fprintf(os.Stdout, "%s -> %s\n", pageURL, p.URL)
	}

	for i, icon := range p.Icons {
		fmt.Fprintf(os.Stdout, "%d. %s %v\n", i+1, icon.URI, icon.Sizes)
	}
	if p.Site != nil {
		fmt.Fprintf(os.Stdout, "manifest: %s (%d icons)\n", p.Site.WebManifestURL, len(p.Site.WebManifest.Icons))
	}

	iconURL, err := h.GetIcon(ctx, p.URL, size, p.Icons, p.Site)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "best: %s\n", iconURL)

	if !blob {
		return nil
	}

	icon, err := h.GetIconBlob(ctx, p.URL, size, p.Icons, p.Site)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "size: %dpx (%d bytes)\n", icon.Size, len(icon.Blob))
	return nil
}
