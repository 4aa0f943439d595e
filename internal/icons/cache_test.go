package icons

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]CachedIcon
	gets    int
	adds    int
	getErr  error
	addErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]CachedIcon{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (CachedIcon, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return CachedIcon{}, false, s.getErr
	}
	icon, ok := s.entries[key]
	return icon, ok, nil
}

func (s *fakeStore) Add(_ context.Context, icon CachedIcon, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	if s.addErr != nil {
		return s.addErr
	}
	s.entries[key] = icon
	return nil
}

func (s *fakeStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.adds
}

type fakeProvider struct {
	mu     sync.Mutex
	stores []Store
	err    error
	opens  int
	names  []string
}

func (p *fakeProvider) Stores(_ context.Context, name string) ([]Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	p.names = append(p.names, name)
	return p.stores, p.err
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	icon    CachedIcon
	err     error
	release chan struct{}
}

func (f *fakeFetcher) FetchAndMeasure(_ context.Context, _ string) (CachedIcon, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.icon, f.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCacheMissThenHit(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{stores: []Store{store}}
	fetcher := &fakeFetcher{icon: CachedIcon{Blob: []byte("abc"), Size: 32}}
	cache := NewCache(provider, "", fetcher, quietLogger())
	ctx := context.Background()

	icon, err := cache.GetOrFetch(ctx, "http://example.com/favicon.ico")
	if err != nil {
		t.Fatalf("first GetOrFetch: %v", err)
	}
	if icon.Size != 32 || !bytes.Equal(icon.Blob, []byte("abc")) {
		t.Fatalf("unexpected icon %+v", icon)
	}
	cache.Wait()

	gets, adds := store.counts()
	if gets != 1 || adds != 1 {
		t.Fatalf("after miss: gets=%d adds=%d, want 1 and 1", gets, adds)
	}

	if _, err := cache.GetOrFetch(ctx, "http://example.com/favicon.ico"); err != nil {
		t.Fatalf("second GetOrFetch: %v", err)
	}
	cache.Wait()

	gets, adds = store.counts()
	if gets != 2 || adds != 1 {
		t.Fatalf("after hit: gets=%d adds=%d, want 2 and 1", gets, adds)
	}
	if fetcher.count() != 1 {
		t.Fatalf("fetches = %d, want 1", fetcher.count())
	}
	if provider.opens != 1 || provider.names[0] != DefaultStoreName {
		t.Fatalf("store opened %d times with %v", provider.opens, provider.names)
	}
}

func TestCacheOpenFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	fetcher := &fakeFetcher{}
	cache := NewCache(provider, "icons", fetcher, quietLogger())

	_, err := cache.GetOrFetch(context.Background(), "http://example.com/a.png")
	if !errors.Is(err, ErrStoreOpen) {
		t.Fatalf("expected ErrStoreOpen, got %v", err)
	}
	if fetcher.count() != 0 {
		t.Fatal("open failure must not fetch")
	}

	provider.err = nil
	_, err = cache.GetOrFetch(context.Background(), "http://example.com/a.png")
	if !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestCacheLookupFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("disk gone")
	fetcher := &fakeFetcher{}
	cache := NewCache(&fakeProvider{stores: []Store{store}}, "", fetcher, quietLogger())

	_, err := cache.GetOrFetch(context.Background(), "http://example.com/a.png")
	if !errors.Is(err, ErrStoreLookup) {
		t.Fatalf("expected ErrStoreLookup, got %v", err)
	}
	if !strings.Contains(err.Error(), "http://example.com/a.png") {
		t.Errorf("error should name the URL: %v", err)
	}
	if fetcher.count() != 0 {
		t.Fatal("lookup failure must not fetch")
	}
}

func TestCacheFetchFailure(t *testing.T) {
	store := newFakeStore()
	fetchErr := errors.New("status 404")
	cache := NewCache(&fakeProvider{stores: []Store{store}}, "", &fakeFetcher{err: fetchErr}, quietLogger())

	_, err := cache.GetOrFetch(context.Background(), "http://example.com/missing.png")
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if !strings.Contains(err.Error(), "http://example.com/missing.png") {
		t.Errorf("error should name the URL: %v", err)
	}
	cache.Wait()
	if _, adds := store.counts(); adds != 0 {
		t.Fatalf("failed fetch must not be stored, adds=%d", adds)
	}
}

func TestCacheWriteBackFailureIsLogged(t *testing.T) {
	store := newFakeStore()
	store.addErr = errors.New("read only")
	var buf bytes.Buffer
	cache := NewCache(&fakeProvider{stores: []Store{store}}, "", &fakeFetcher{icon: CachedIcon{Size: 16}}, log.New(&buf, "", 0))

	icon, err := cache.GetOrFetch(context.Background(), "http://example.com/a.png")
	if err != nil {
		t.Fatalf("write-back failure must not reach the caller: %v", err)
	}
	if icon.Size != 16 {
		t.Fatalf("size = %d", icon.Size)
	}
	cache.Wait()
	if !strings.Contains(buf.String(), "failed to store http://example.com/a.png") {
		t.Fatalf("expected logged write failure, got %q", buf.String())
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{icon: CachedIcon{Size: 64}, release: make(chan struct{})}
	cache := NewCache(&fakeProvider{stores: []Store{store}}, "", fetcher, quietLogger())

	const callers = 5
	var started, done sync.WaitGroup
	errs := make(chan error, callers)
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			_, err := cache.GetOrFetch(context.Background(), "http://example.com/big.png")
			errs <- err
		}()
	}
	started.Wait()

	// Every caller must have missed and joined the flight before the
	// fetch is released.
	for {
		if gets, _ := store.counts(); gets == callers {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	done.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
	}
	cache.Wait()
	if fetcher.count() != 1 {
		t.Fatalf("fetches = %d, want 1", fetcher.count())
	}
	if _, adds := store.counts(); adds != 1 {
		t.Fatalf("adds = %d, want 1", adds)
	}
}

// blockingFetcher waits for release or for its context to end.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	icon    CachedIcon
}

func (f *blockingFetcher) FetchAndMeasure(ctx context.Context, _ string) (CachedIcon, error) {
	close(f.started)
	select {
	case <-f.release:
		return f.icon, nil
	case <-ctx.Done():
		return CachedIcon{}, ctx.Err()
	}
}

func TestCacheSharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	store := newFakeStore()
	fetcher := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		icon:    CachedIcon{Blob: []byte("png"), Size: 32},
	}
	cache := NewCache(&fakeProvider{stores: []Store{store}}, "", fetcher, quietLogger())
	const iconURL = "http://example.com/a.png"

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrFetch(ctx, iconURL)
		firstErr <- err
	}()
	<-fetcher.started

	type result struct {
		icon CachedIcon
		err  error
	}
	second := make(chan result, 1)
	go func() {
		icon, err := cache.GetOrFetch(context.Background(), iconURL)
		second <- result{icon, err}
	}()
	for {
		if gets, _ := store.counts(); gets == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first caller: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first caller did not return after cancel")
	}

	close(fetcher.release)
	res := <-second
	if res.err != nil {
		t.Fatalf("second caller: %v", res.err)
	}
	if res.icon.Size != 32 {
		t.Fatalf("second caller size = %d, want 32", res.icon.Size)
	}
	cache.Wait()
	if _, adds := store.counts(); adds != 1 {
		t.Fatalf("adds = %d, want 1", adds)
	}
}
