package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/testutil"
)

func intPtr(i int) *int { return &i }

func TestStore_UpsertAndGet(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	row := metadata.PersistedMetadata{
		FileID:       "f1",
		Category:     metadata.CategoryVideo,
		ProviderID:   metadata.ProviderTMDBTV,
		ExternalID:   "1396",
		Kind:         metadata.KindEpisode,
		Title:        "Breaking Bad",
		Year:         intPtr(2008),
		Artists:      []string{},
		Albums:       []string{},
		Genres:       []string{"Drama", "Crime"},
		ThumbnailURL: "https://image.tmdb.org/still.jpg",
		EpisodeTitle: "Ozymandias",
		Season:       intPtr(5),
		Episode:      intPtr(14),
		Stage:        metadata.StageStructured,
		VariantIndex: 1,
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, tdb.Store.UpsertMetadata(ctx, row))

	got, err := tdb.Store.GetMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", got.Title)
	assert.Equal(t, metadata.KindEpisode, got.Kind)
	assert.Equal(t, []string{"Drama", "Crime"}, got.Genres)
	assert.Equal(t, []string{}, got.Artists)
	require.NotNil(t, got.Season)
	assert.Equal(t, 5, *got.Season)
	assert.Equal(t, 14, *got.Episode)
	assert.Equal(t, 2008, *got.Year)
	assert.Equal(t, 1, got.VariantIndex)
	assert.True(t, row.UpdatedAt.Equal(got.UpdatedAt))
}

func TestStore_UpsertOverwrites(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	row := metadata.PersistedMetadata{
		FileID:     "f1",
		Category:   metadata.CategoryMusic,
		ProviderID: metadata.ProviderSpotify,
		Title:      "One More Time",
		Stage:      metadata.StageStructured,
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, tdb.Store.UpsertMetadata(ctx, row))

	row.ThumbnailLocalPath = "/data/artwork/music/f1_thumb.jpg"
	row.AIAssisted = true
	require.NoError(t, tdb.Store.UpsertMetadata(ctx, row))

	got, err := tdb.Store.GetMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "/data/artwork/music/f1_thumb.jpg", got.ThumbnailLocalPath)
	assert.True(t, got.AIAssisted)
	assert.Nil(t, got.Year)

	var count int
	require.NoError(t, tdb.Conn.QueryRow(`SELECT COUNT(*) FROM file_metadata`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_GetMissing(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	_, err := tdb.Store.GetMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, metadata.ErrMetadataNotFound)
}

func attempt(runID, fileID string, outcome metadata.Outcome, completed time.Time) metadata.Attempt {
	return metadata.Attempt{
		RunID: runID,
		Request: metadata.ResolveRequest{
			FileID:      fileID,
			Filename:    fileID + ".mp3",
			Category:    metadata.CategoryMusic,
			BasicTitle:  "Some Title",
			Fingerprint: &metadata.Fingerprint{Data: []byte{1, 2, 3}, DurationSeconds: 180},
		},
		Outcome:     outcome,
		Tries:       6,
		StartedAt:   completed.Add(-time.Second),
		CompletedAt: completed,
	}
}

func TestStore_ListExhausted(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-10 * 24 * time.Hour)

	// exhausted long ago, still unresolved
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r1", "stale", metadata.OutcomeExhausted, old)))
	// exhausted recently
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r2", "recent", metadata.OutcomeExhausted, now)))
	// exhausted then later resolved
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r3", "fixed", metadata.OutcomeExhausted, old)))
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r4", "fixed", metadata.OutcomeResolved, old.Add(time.Hour))))
	require.NoError(t, tdb.Store.UpsertMetadata(ctx, metadata.PersistedMetadata{
		FileID: "fixed", Category: metadata.CategoryMusic, ProviderID: metadata.ProviderSpotify,
		Title: "Some Title", Stage: metadata.StageStructured, UpdatedAt: old.Add(time.Hour),
	}))

	reqs, err := tdb.Store.ListExhausted(ctx, now.Add(-7*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "stale", reqs[0].FileID)
	assert.Equal(t, metadata.CategoryMusic, reqs[0].Category)
	require.NotNil(t, reqs[0].Fingerprint)
	assert.Equal(t, []byte{1, 2, 3}, reqs[0].Fingerprint.Data)
	assert.Equal(t, 180, reqs[0].Fingerprint.DurationSeconds)
}

func TestStore_CountAttempts(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r1", "a", metadata.OutcomeExhausted, now)))
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r2", "b", metadata.OutcomeResolved, now)))
	require.NoError(t, tdb.Store.RecordAttempt(ctx, attempt("r3", "c", metadata.OutcomeResolved, now)))

	counts, err := tdb.Store.CountAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[metadata.OutcomeResolved])
	assert.Equal(t, 1, counts[metadata.OutcomeExhausted])
}

func TestStore_LatestRequest(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	_, err := tdb.Store.LatestRequest(ctx, "missing")
	assert.ErrorIs(t, err, metadata.ErrRequestNotFound)

	now := time.Now().UTC()
	first := attempt("r1", "f1", metadata.OutcomeExhausted, now.Add(-time.Hour))
	second := attempt("r2", "f1", metadata.OutcomeExhausted, now)
	second.Request.BasicTitle = "Retitled"
	second.Request.Fingerprint = &metadata.Fingerprint{Data: []byte{0xde, 0xad}, DurationSeconds: 200}
	require.NoError(t, tdb.Store.RecordAttempt(ctx, first))
	require.NoError(t, tdb.Store.RecordAttempt(ctx, second))

	req, err := tdb.Store.LatestRequest(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Retitled", req.BasicTitle)
	require.NotNil(t, req.Fingerprint)
	assert.Equal(t, []byte{0xde, 0xad}, req.Fingerprint.Data)
	assert.Equal(t, 200, req.Fingerprint.DurationSeconds)
}

type flakyFetcher struct{ fail bool }

func (f *flakyFetcher) FetchAndCacheImage(ctx context.Context, url, fileID string, category metadata.Category) (string, error) {
	if f.fail {
		return "", metadata.ErrDownloadFailed
	}
	return "/artwork/" + string(category) + "/" + fileID + "_thumb.jpg", nil
}

func TestStore_PersistTwiceMatchesPersistOnce(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	images := &flakyFetcher{}
	p := metadata.NewPersister(tdb.Store, images, tdb.Logger)
	res := metadata.Resolution{
		Candidate: &metadata.Candidate{
			ProviderID:   metadata.ProviderTMDBMovie,
			ExternalID:   "27205",
			Kind:         metadata.KindMovie,
			Title:        "Inception",
			Year:         intPtr(2010),
			Genres:       []string{"Action", "Science Fiction"},
			ThumbnailURL: "https://image.tmdb.org/poster.jpg",
		},
		Provenance: metadata.Provenance{Provider: metadata.ProviderTMDBMovie, Stage: metadata.StageStructured, VariantIndex: 1},
	}

	_, err := p.Persist(ctx, "f1", metadata.CategoryVideo, res)
	require.NoError(t, err)
	once, err := tdb.Store.GetMetadata(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "/artwork/video/f1_thumb.jpg", once.ThumbnailLocalPath)

	images.fail = true
	_, err = p.Persist(ctx, "f1", metadata.CategoryVideo, res)
	require.NoError(t, err)
	twice, err := tdb.Store.GetMetadata(ctx, "f1")
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}
