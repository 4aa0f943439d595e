// Package fetch retrieves icons over HTTP and measures them.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	ico "github.com/sergeymakinen/go-ico"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/aizatto/faviconurl/internal/icons"
)

const (
	// DefaultTimeout bounds a single icon fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBytes caps an icon response body (10 MB).
	DefaultMaxBytes = 10 << 20
)

var (
	ErrTransport = errors.New("transport error")
	ErrDecode    = errors.New("error while loading image")
	ErrTooLarge  = errors.New("icon too large")
)

var icoMagic = []byte{0x00, 0x00, 0x01, 0x00}

var tracer = otel.Tracer("github.com/aizatto/faviconurl/internal/fetch")

// StatusError is returned for any terminal response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("got http status %d trying to load %s", e.StatusCode, e.URL)
}

type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// Fetcher downloads icons and reports their larger edge as their size.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client:    NewHTTPClient(opts.Timeout, opts.Transport),
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

// FetchAndMeasure downloads iconURL, decodes it and returns the bytes along
// with max(width, height).
func (f *Fetcher) FetchAndMeasure(ctx context.Context, iconURL string) (icons.CachedIcon, error) {
	ctx, span := tracer.Start(ctx, "fetch.FetchAndMeasure")
	defer span.End()
	span.SetAttributes(attribute.String("icon.url", iconURL))

	icon, err := f.fetchAndMeasure(ctx, iconURL)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return icons.CachedIcon{}, err
	}
	span.SetAttributes(attribute.Int("icon.size", icon.Size), attribute.Int("icon.bytes", len(icon.Blob)))
	return icon, nil
}

func (f *Fetcher) fetchAndMeasure(ctx context.Context, iconURL string) (icons.CachedIcon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return icons.CachedIcon{}, fmt.Errorf("%w: error while getting %s: %w", ErrTransport, iconURL, err)
	}
	req.Header.Set("Accept", "image/*")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return icons.CachedIcon{}, fmt.Errorf("%w: error while getting %s: %w", ErrTransport, iconURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return icons.CachedIcon{}, &StatusError{URL: iconURL, StatusCode: resp.StatusCode}
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return icons.CachedIcon{}, fmt.Errorf("%w: error while reading %s: %w", ErrTransport, iconURL, err)
	}
	if int64(len(blob)) > f.maxBytes {
		return icons.CachedIcon{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, iconURL, f.maxBytes)
	}

	size, err := Measure(blob)
	if err != nil {
		return icons.CachedIcon{}, fmt.Errorf("%w %s: %w", ErrDecode, iconURL, err)
	}
	return icons.CachedIcon{Blob: blob, Size: size}, nil
}

// Measure decodes blob and returns the larger of its width and height.
func Measure(blob []byte) (int, error) {
	img, err := decode(blob)
	if err != nil {
		return 0, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}
	return max(b.Dx(), b.Dy()), nil
}

func decode(blob []byte) (image.Image, error) {
	// image.Decode sniffs the header before handing the stream over, which
	// some ICO files extracted from binaries do not survive.
	if bytes.HasPrefix(blob, icoMagic) {
		return ico.Decode(bytes.NewReader(blob))
	}
	img, _, err := image.Decode(bytes.NewReader(blob))
	return img, err
}
