package mock

import (
	"context"
	"sync"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

// Call records one provider invocation.
type Call struct {
	Provider string
	Query    string
	Artist   string
}

// Recorder collects calls across scripted providers so tests can assert
// the exact order the resolver consulted them in.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(c Call) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Fingerprint is a scripted FingerprintProvider.
type Fingerprint struct {
	Recorder *Recorder
	Result   *metadata.Candidate
	Err      error
}

func (f *Fingerprint) LookupByFingerprint(ctx context.Context, fp []byte, duration int) (*metadata.Candidate, error) {
	f.Recorder.record(Call{Provider: "fingerprint"})
	return f.Result, f.Err
}

// Search is a scripted provider for every list-returning search interface.
// Results are keyed by query, then by "query|artist" when an artist is given.
type Search struct {
	Name     string
	Recorder *Recorder
	Results  map[string][]metadata.Candidate
	Err      error

	// Genres is copied onto candidates passed to Enrich.
	Genres   []string
	Enriched []string
}

func (s *Search) lookup(name, query, artist string) ([]metadata.Candidate, error) {
	s.Recorder.record(Call{Provider: name, Query: query, Artist: artist})
	if s.Err != nil {
		return nil, s.Err
	}
	key := query
	if artist != "" {
		key = query + "|" + artist
	}
	return s.Results[key], nil
}

func (s *Search) SearchTracks(ctx context.Context, title, artist string) ([]metadata.Candidate, error) {
	return s.lookup(s.Name, title, artist)
}

func (s *Search) SearchRecordings(ctx context.Context, title, artist string) ([]metadata.Candidate, error) {
	return s.lookup(s.Name, title, artist)
}

func (s *Search) SearchMovies(ctx context.Context, query string, year *int) ([]metadata.Candidate, error) {
	return s.lookup(s.Name, query, "")
}

func (s *Search) SearchSeries(ctx context.Context, query string, hint metadata.SeriesHint) ([]metadata.Candidate, error) {
	return s.lookup(s.Name, query, "")
}

func (s *Search) Enrich(ctx context.Context, c *metadata.Candidate, hint metadata.SeriesHint) {
	s.Enriched = append(s.Enriched, c.Title)
	if len(s.Genres) > 0 {
		c.Genres = append([]string(nil), s.Genres...)
	}
}

// FreeText is a scripted FreeTextProvider.
type FreeText struct {
	Recorder *Recorder
	Results  map[string]metadata.Candidate
}

func (f *FreeText) SearchTitle(ctx context.Context, query string) (*metadata.Candidate, error) {
	f.Recorder.record(Call{Provider: "freetext", Query: query})
	c, ok := f.Results[query]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Extractor is a scripted TitleExtractor.
type Extractor struct {
	Recorder *Recorder
	Result   metadata.ExtractedTitle
	Err      error
}

func (e *Extractor) Extract(ctx context.Context, filename string, category metadata.Category) (metadata.ExtractedTitle, error) {
	e.Recorder.record(Call{Provider: "extractor", Query: filename})
	return e.Result, e.Err
}
