package metadata

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrMetadataNotFound = errors.New("metadata not found")
	ErrPersistFailed    = errors.New("failed to persist resolution")
	ErrRequestNotFound  = errors.New("no resolve request recorded for file")
)

// Store is the durable record of resolved metadata and resolver runs.
type Store interface {
	UpsertMetadata(ctx context.Context, m PersistedMetadata) error
	GetMetadata(ctx context.Context, fileID string) (*PersistedMetadata, error)
	RecordAttempt(ctx context.Context, a Attempt) error
}

// ThumbnailFetcher caches remote artwork locally.
type ThumbnailFetcher interface {
	FetchAndCacheImage(ctx context.Context, url, fileID string, category Category) (string, error)
}

// Persister writes accepted resolutions. The metadata row is written before
// any artwork is fetched, so a slow or broken image host never loses a match.
type Persister struct {
	store  Store
	images ThumbnailFetcher
	logger zerolog.Logger
}

// NewPersister creates a persister. images may be nil to skip artwork caching.
func NewPersister(store Store, images ThumbnailFetcher, logger zerolog.Logger) *Persister {
	return &Persister{
		store:  store,
		images: images,
		logger: logger.With().Str("component", "persister").Logger(),
	}
}

// Persist upserts the metadata row for a resolved file, then caches its
// thumbnail (falling back to the backdrop) and records the local path.
// Applying the same resolution again leaves the stored row unchanged, and a
// failed re-fetch of unchanged artwork keeps the previously cached path.
// Exhausted resolutions persist nothing.
func (p *Persister) Persist(ctx context.Context, fileID string, category Category, res Resolution) (*PersistedMetadata, error) {
	if !res.Resolved() {
		return nil, nil
	}

	row := NewPersistedMetadata(fileID, category, res)
	existing := p.existing(ctx, fileID)
	if existing != nil && artworkURL(*existing) == artworkURL(row) {
		row.ThumbnailLocalPath = existing.ThumbnailLocalPath
	}

	if existing != nil && sameMetadata(*existing, row) {
		row.UpdatedAt = existing.UpdatedAt
	} else {
		row.UpdatedAt = time.Now().UTC()
		if err := p.store.UpsertMetadata(ctx, row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
	}

	url := artworkURL(row)
	if p.images == nil || url == "" {
		return &row, nil
	}

	path, err := p.images.FetchAndCacheImage(ctx, url, fileID, category)
	if err != nil {
		p.logger.Warn().Err(err).Str("fileId", fileID).Str("url", url).Msg("Thumbnail not cached, keeping previous state")
		return &row, nil
	}
	if path == row.ThumbnailLocalPath {
		return &row, nil
	}

	previous := row
	row.ThumbnailLocalPath = path
	row.UpdatedAt = time.Now().UTC()
	if err := p.store.UpsertMetadata(ctx, row); err != nil {
		p.logger.Warn().Err(err).Str("fileId", fileID).Msg("Failed to record thumbnail path")
		return &previous, nil
	}
	return &row, nil
}

// existing returns the stored row for a file, or nil when there is none or
// it cannot be read.
func (p *Persister) existing(ctx context.Context, fileID string) *PersistedMetadata {
	m, err := p.store.GetMetadata(ctx, fileID)
	if err != nil {
		if !errors.Is(err, ErrMetadataNotFound) {
			p.logger.Warn().Err(err).Str("fileId", fileID).Msg("Failed to read stored metadata")
		}
		return nil
	}
	return m
}

// artworkURL is the remote image cached for a row.
func artworkURL(m PersistedMetadata) string {
	if m.ThumbnailURL != "" {
		return m.ThumbnailURL
	}
	return m.BackdropURL
}

// sameMetadata compares every stored column except updated_at.
func sameMetadata(a, b PersistedMetadata) bool {
	return a.FileID == b.FileID &&
		a.Category == b.Category &&
		a.ProviderID == b.ProviderID &&
		a.ExternalID == b.ExternalID &&
		a.Kind == b.Kind &&
		a.Title == b.Title &&
		equalInt(a.Year, b.Year) &&
		slices.Equal(a.Artists, b.Artists) &&
		slices.Equal(a.Albums, b.Albums) &&
		slices.Equal(a.Genres, b.Genres) &&
		a.ThumbnailURL == b.ThumbnailURL &&
		a.BackdropURL == b.BackdropURL &&
		a.Description == b.Description &&
		a.EpisodeTitle == b.EpisodeTitle &&
		a.EpisodeDescription == b.EpisodeDescription &&
		equalInt(a.Season, b.Season) &&
		equalInt(a.Episode, b.Episode) &&
		a.ThumbnailLocalPath == b.ThumbnailLocalPath &&
		a.Stage == b.Stage &&
		a.VariantIndex == b.VariantIndex &&
		a.AIAssisted == b.AIAssisted
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RecordAttempt stores the diagnostic row for a run. Failures are logged and
// swallowed; attempts are diagnostics, not results.
func (p *Persister) RecordAttempt(ctx context.Context, a Attempt) {
	if err := p.store.RecordAttempt(ctx, a); err != nil {
		p.logger.Warn().Err(err).Str("fileId", a.Request.FileID).Str("runId", a.RunID).Msg("Failed to record resolve attempt")
	}
}

// Get returns the persisted metadata for a file.
func (p *Persister) Get(ctx context.Context, fileID string) (*PersistedMetadata, error) {
	return p.store.GetMetadata(ctx, fileID)
}
