package icons

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// DefaultStoreName is the name of the store holding cached icons.
const DefaultStoreName = "icons"

var (
	ErrStoreOpen   = errors.New("error opening the icon store")
	ErrNoStore     = errors.New("no store available")
	ErrStoreLookup = errors.New("failed to get icon from the icon store")
)

var tracer = otel.Tracer("github.com/aizatto/faviconurl/internal/icons")

// Store is a persistent map from icon URL to CachedIcon.
type Store interface {
	Get(ctx context.Context, key string) (CachedIcon, bool, error)
	Add(ctx context.Context, icon CachedIcon, key string) error
}

// StoreProvider lists the stores available under a name.
type StoreProvider interface {
	Stores(ctx context.Context, name string) ([]Store, error)
}

// Fetcher retrieves an icon and measures it.
type Fetcher interface {
	FetchAndMeasure(ctx context.Context, iconURL string) (CachedIcon, error)
}

// Cache serves icons from a Store, fetching and writing back on a miss.
//
// The store is opened lazily on first use and kept for the lifetime of the
// Cache. Concurrent misses for the same URL share one fetch. Write-backs run
// in the background and only log their failures.
type Cache struct {
	provider  StoreProvider
	storeName string
	fetcher   Fetcher
	logger    *log.Logger

	mu    sync.Mutex
	store Store

	flights singleflight.Group
	writes  sync.WaitGroup
}

// NewCache creates a cache over the store called storeName. An empty name
// means DefaultStoreName and a nil logger means log.Default().
func NewCache(provider StoreProvider, storeName string, fetcher Fetcher, logger *log.Logger) *Cache {
	if storeName == "" {
		storeName = DefaultStoreName
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		provider:  provider,
		storeName: storeName,
		fetcher:   fetcher,
		logger:    logger,
	}
}

func (c *Cache) openStore(ctx context.Context) (Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}

	stores, err := c.provider.Stores(ctx, c.storeName)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrStoreOpen, c.storeName, err)
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("%w %q: %w", ErrStoreOpen, c.storeName, ErrNoStore)
	}

	c.store = stores[0]
	return c.store, nil
}

// GetOrFetch returns the cached icon for iconURL, fetching it on a miss. The
// result is returned as soon as the fetch completes; persisting it happens
// afterwards in the background. A store failure is returned as is, without
// falling back to a fetch. Canceling ctx returns early but leaves a fetch
// shared with other callers running.
func (c *Cache) GetOrFetch(ctx context.Context, iconURL string) (CachedIcon, error) {
	ctx, span := tracer.Start(ctx, "icons.Cache.GetOrFetch")
	defer span.End()
	span.SetAttributes(attribute.String("icon.url", iconURL))

	store, err := c.openStore(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CachedIcon{}, err
	}

	icon, ok, err := store.Get(ctx, iconURL)
	if err != nil {
		err = fmt.Errorf("%w for %s: %w", ErrStoreLookup, iconURL, err)
		span.SetStatus(codes.Error, err.Error())
		return CachedIcon{}, err
	}
	span.SetAttributes(attribute.Bool("icon.cache_hit", ok))
	if ok {
		return icon, nil
	}

	// The fetch belongs to every caller joined to the flight, so it must not
	// stop when the caller that started it goes away. The fetcher's own
	// timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(iconURL, func() (any, error) {
		c.logger.Printf("icons: cache miss for %s", iconURL)
		icon, err := c.fetcher.FetchAndMeasure(fetchCtx, iconURL)
		if err != nil {
			return CachedIcon{}, fmt.Errorf("failed to fetch icon %s: %w", iconURL, err)
		}
		c.writeBack(fetchCtx, store, iconURL, icon)
		return icon, nil
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		span.SetStatus(codes.Error, err.Error())
		return CachedIcon{}, err
	case res := <-ch:
		span.SetAttributes(attribute.Bool("icon.fetch_shared", res.Shared))
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
			return CachedIcon{}, res.Err
		}
		return res.Val.(CachedIcon), nil
	}
}

func (c *Cache) writeBack(ctx context.Context, store Store, iconURL string, icon CachedIcon) {
	ctx = context.WithoutCancel(ctx)

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		if err := store.Add(ctx, icon, iconURL); err != nil {
			c.logger.Printf("icons: failed to store %s: %v", iconURL, err)
		}
	}()
}

// Wait blocks until every background write-back has finished.
func (c *Cache) Wait() {
	c.writes.Wait()
}
