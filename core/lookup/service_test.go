package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/FocuswithJustin/CedarPulpit/core/cache"
	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/core/provider"
)

// memBlobStore satisfies cache.BlobStore for tests.
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string]string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]string)}
}

func (s *memBlobStore) ReadBlob(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.blobs[key]
	return v, ok, nil
}

func (s *memBlobStore) WriteBlob(key, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *atomic.Int64) {
	t.Helper()
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	primary := provider.NewPrimary(srv.Client(), srv.URL)
	secondary := provider.NewSecondary(srv.Client(), srv.URL)
	sel := provider.NewSelector(primary, secondary, "")
	c := cache.New(newMemBlobStore(), cache.DefaultConfig())
	return NewService(sel, c), &fetches
}

func chapterJSON(w http.ResponseWriter) {
	w.Write([]byte(`{
		"reference": "John 3",
		"text": "For God so loved the world...",
		"translation_id": "web",
		"verses": [{"verse": 16, "text": "For God so loved the world..."}]
	}`))
}

func TestLookup_FetchesThenServesFromCache(t *testing.T) {
	svc, fetches := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		chapterJSON(w)
	})

	first, err := svc.Lookup(context.Background(), "John 3:16", "web")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first.FromCache {
		t.Error("first lookup should not be served from cache")
	}
	if first.Chapter.Reference != "John 3" {
		t.Errorf("Reference = %q; want John 3", first.Chapter.Reference)
	}

	second, err := svc.Lookup(context.Background(), "john 3", "web")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !second.FromCache {
		t.Error("second lookup should hit the cache")
	}
	if fetches.Load() != 1 {
		t.Errorf("provider fetched %d times; want 1", fetches.Load())
	}
}

func TestLookup_MalformedReference(t *testing.T) {
	svc, fetches := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		chapterJSON(w)
	})

	_, err := svc.Lookup(context.Background(), "not a verse", "web")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error chain missing ErrInvalidInput: %v", err)
	}
	if fetches.Load() != 0 {
		t.Error("malformed reference must not reach the provider")
	}
}

func TestLookup_SubstitutionIsFlagged(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		chapterJSON(w)
	})

	res, err := svc.Lookup(context.Background(), "John 3", "latin-vulgate")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Substituted {
		t.Error("fallback translation must be flagged, never silent")
	}
	if res.Translation != provider.DefaultTranslation {
		t.Errorf("Translation = %q; want default %q", res.Translation, provider.DefaultTranslation)
	}
}

func TestLookup_ProviderErrorBubbles(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := svc.Lookup(context.Background(), "John 3", "web")
	var perr *errors.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T; want *ProviderError", err)
	}
}

func TestLookup_CoalescesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	svc, fetches := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		chapterJSON(w)
	})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Lookup(context.Background(), "John 3", "web")
			if err != nil {
				t.Errorf("Lookup: %v", err)
				return
			}
			results[i] = res
		}(i)
	}

	close(release)
	wg.Wait()

	if n := fetches.Load(); n >= callers {
		t.Errorf("fetches = %d; concurrent identical lookups should coalesce", n)
	}
	for i, res := range results {
		if res == nil || res.Chapter == nil {
			t.Fatalf("caller %d got no chapter", i)
		}
	}
}
