package metadata

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func testCandidates(titles ...string) []Candidate {
	out := make([]Candidate, 0, len(titles))
	for _, title := range titles {
		out = append(out, Candidate{ProviderID: ProviderTMDBMovie, Title: title})
	}
	return out
}

func TestCache_SetGet(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: time.Minute, MaxItems: 100})
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "key1", testCandidates("The Matrix"))

	val, ok := cache.Get(ctx, "key1")
	if !ok {
		t.Fatal("expected key1 to exist")
	}
	if len(val) != 1 || val[0].Title != "The Matrix" {
		t.Errorf("unexpected cached value %v", val)
	}
}

func TestCache_GetMissing(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: time.Minute, MaxItems: 100})
	defer cache.Close()

	_, ok := cache.Get(context.Background(), "nonexistent")
	if ok {
		t.Error("expected key to not exist")
	}
}

func TestCache_EmptyResultIsHit(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: time.Minute, MaxItems: 100})
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "empty", nil)

	_, ok := cache.Get(ctx, "empty")
	if !ok {
		t.Error("expected cached empty result to be a hit")
	}
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: 50 * time.Millisecond, MaxItems: 100})
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "key1", testCandidates("Inception"))

	// Should exist immediately
	if _, ok := cache.Get(ctx, "key1"); !ok {
		t.Error("expected key1 to exist immediately")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get(ctx, "key1"); ok {
		t.Error("expected key1 to be expired")
	}
}

func TestCache_Eviction(t *testing.T) {
	cache := NewCache(CacheConfig{TTL: time.Minute, MaxItems: 5})
	defer cache.Close()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		cache.Set(ctx, fmt.Sprintf("key%d", i), testCandidates(fmt.Sprintf("Title %d", i)))
	}

	if cache.Len() > 5 {
		t.Errorf("expected at most 5 items, got %d", cache.Len())
	}
}

type countingMovies struct {
	calls   int
	results []Candidate
}

func (m *countingMovies) SearchMovies(ctx context.Context, query string, year *int) ([]Candidate, error) {
	m.calls++
	return m.results, nil
}

func (m *countingMovies) Enrich(ctx context.Context, c *Candidate, _ SeriesHint) {
	c.Genres = []string{"Drama"}
}

type countingTV struct {
	calls int
}

func (s *countingTV) SearchSeries(ctx context.Context, query string, hint SeriesHint) ([]Candidate, error) {
	s.calls++
	return testCandidates(query), nil
}

func TestCachingMovieTV_MoviesMemoized(t *testing.T) {
	cache := NewCache(DefaultCacheConfig())
	defer cache.Close()
	ctx := context.Background()

	inner := &countingMovies{results: testCandidates("Fight Club")}
	movies := NewCachingMovieTV(inner, nil, cache).Movies()

	for i := 0; i < 3; i++ {
		res, err := movies.SearchMovies(ctx, "Fight Club", nil)
		if err != nil {
			t.Fatalf("SearchMovies() error = %v", err)
		}
		if len(res) != 1 {
			t.Fatalf("expected 1 result, got %d", len(res))
		}
	}
	// Case and punctuation differences share one cache entry.
	if _, err := movies.SearchMovies(ctx, "fight.club", nil); err != nil {
		t.Fatalf("SearchMovies() error = %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}
}

func TestCachingMovieTV_MovieKeyIncludesYear(t *testing.T) {
	cache := NewCache(DefaultCacheConfig())
	defer cache.Close()
	ctx := context.Background()

	inner := &countingMovies{results: testCandidates("Dune")}
	movies := NewCachingMovieTV(inner, nil, cache).Movies()
	y1984, y2021 := 1984, 2021

	movies.SearchMovies(ctx, "Dune", &y1984)
	movies.SearchMovies(ctx, "Dune", &y2021)
	movies.SearchMovies(ctx, "Dune", &y1984)
	movies.SearchMovies(ctx, "Dune", nil)

	if inner.calls != 3 {
		t.Errorf("expected 3 upstream calls, got %d", inner.calls)
	}
}

func TestCachingMovieTV_ReturnsCopies(t *testing.T) {
	cache := NewCache(DefaultCacheConfig())
	defer cache.Close()
	ctx := context.Background()

	movies := NewCachingMovieTV(&countingMovies{results: testCandidates("Fight Club")}, nil, cache).Movies()

	first, _ := movies.SearchMovies(ctx, "Fight Club", nil)
	first[0].Title = "mutated"

	second, _ := movies.SearchMovies(ctx, "Fight Club", nil)
	if second[0].Title != "Fight Club" {
		t.Errorf("cached value was mutated: %q", second[0].Title)
	}
}

func TestCachingMovieTV_TVKeyIncludesEpisode(t *testing.T) {
	cache := NewCache(DefaultCacheConfig())
	defer cache.Close()
	ctx := context.Background()

	inner := &countingTV{}
	tv := NewCachingMovieTV(nil, inner, cache).TV()

	ep5 := SeriesHint{IsSeries: true, Season: intPtr(2), Episode: intPtr(5)}
	ep6 := SeriesHint{IsSeries: true, Season: intPtr(2), Episode: intPtr(6)}

	_, _ = tv.SearchSeries(ctx, "The Show", ep5)
	_, _ = tv.SearchSeries(ctx, "The Show", ep5)
	_, _ = tv.SearchSeries(ctx, "The Show", ep6)

	if inner.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", inner.calls)
	}
}

func TestCachingMovieTV_NilProviders(t *testing.T) {
	c := NewCachingMovieTV(nil, nil, NewCache(DefaultCacheConfig()))
	if c.Movies() != nil {
		t.Error("expected nil movie provider")
	}
	if c.TV() != nil {
		t.Error("expected nil tv provider")
	}
}

func TestCachingMovieTV_ForwardsEnrich(t *testing.T) {
	cache := NewCache(DefaultCacheConfig())
	defer cache.Close()

	movies := NewCachingMovieTV(&countingMovies{}, nil, cache).Movies()
	e, ok := movies.(Enricher)
	if !ok {
		t.Fatal("expected caching movie provider to implement Enricher")
	}

	c := Candidate{Title: "Fight Club"}
	e.Enrich(context.Background(), &c, SeriesHint{})
	if len(c.Genres) != 1 || c.Genres[0] != "Drama" {
		t.Errorf("expected enrichment to be forwarded, got %v", c.Genres)
	}
}
