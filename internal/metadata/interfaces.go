package metadata

import "context"

// FingerprintProvider identifies a recording from a pre-computed acoustic
// fingerprint. A nil candidate means no confident match.
type FingerprintProvider interface {
	LookupByFingerprint(ctx context.Context, fingerprint []byte, durationSeconds int) (*Candidate, error)
}

// MusicSearchProvider is the structured music catalog.
type MusicSearchProvider interface {
	SearchTracks(ctx context.Context, title, artist string) ([]Candidate, error)
}

// CommunityMusicProvider is the community-maintained music database.
type CommunityMusicProvider interface {
	SearchRecordings(ctx context.Context, title, artist string) ([]Candidate, error)
}

// MovieProvider searches films. A non-nil year narrows the search to that
// release year.
type MovieProvider interface {
	SearchMovies(ctx context.Context, query string, year *int) ([]Candidate, error)
}

// TVProvider searches series; when the hint names an episode the returned
// candidates describe that episode.
type TVProvider interface {
	SearchSeries(ctx context.Context, query string, hint SeriesHint) ([]Candidate, error)
}

// FreeTextProvider returns at most one match for a free-text title.
type FreeTextProvider interface {
	SearchTitle(ctx context.Context, query string) (*Candidate, error)
}

// TitleExtractor asks a language model for a clean title when every
// deterministic path failed.
type TitleExtractor interface {
	Extract(ctx context.Context, filename string, category Category) (ExtractedTitle, error)
}

// Enricher is implemented by providers that can fill in details (genres,
// artwork, episode synopsis) for a candidate after it was accepted. Search
// results stay cheap; only the winner pays for detail requests.
type Enricher interface {
	Enrich(ctx context.Context, c *Candidate, hint SeriesHint)
}
