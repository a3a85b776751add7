package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/metadata/acoustid"
	"github.com/mediashelf/mediashelf/internal/metadata/musicbrainz"
	"github.com/mediashelf/mediashelf/internal/metadata/omdb"
	"github.com/mediashelf/mediashelf/internal/metadata/spotify"
	"github.com/mediashelf/mediashelf/internal/metadata/tmdb"
)

// Failure classes logged when a provider call is converted to zero candidates.
const (
	failureUnavailable = "provider-unavailable"
	failureMalformed   = "malformed-response"
	failureCancelled   = "cancelled"
)

func classifyFailure(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failureCancelled
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return failureMalformed
	default:
		return failureUnavailable
	}
}

func logProviderFailure(logger zerolog.Logger, provider string, err error) {
	logger.Warn().
		Err(err).
		Str("provider", provider).
		Str("class", classifyFailure(err)).
		Msg("Provider call failed, treating as no candidates")
}

func yearPtr(y int) *int {
	if y <= 0 {
		return nil
	}
	return intPtr(y)
}

// acoustIDClient is the subset of acoustid.Client used by the adapter.
type acoustIDClient interface {
	Lookup(ctx context.Context, fingerprint []byte, durationSeconds int) (*acoustid.Match, error)
}

// AcoustIDProvider adapts the AcoustID client to FingerprintProvider.
type AcoustIDProvider struct {
	client acoustIDClient
	logger zerolog.Logger
}

// NewAcoustIDProvider creates the fingerprint adapter.
func NewAcoustIDProvider(client acoustIDClient, logger zerolog.Logger) *AcoustIDProvider {
	return &AcoustIDProvider{client: client, logger: logger.With().Str("component", "provider").Logger()}
}

// LookupByFingerprint never returns an error; failures mean no match.
func (p *AcoustIDProvider) LookupByFingerprint(ctx context.Context, fingerprint []byte, durationSeconds int) (*Candidate, error) {
	m, err := p.client.Lookup(ctx, fingerprint, durationSeconds)
	if err != nil {
		logProviderFailure(p.logger, ProviderAcoustID, err)
		return nil, nil
	}
	if m == nil {
		return nil, nil
	}
	score := m.Score
	return &Candidate{
		ProviderID: ProviderAcoustID,
		ExternalID: m.RecordingID,
		Kind:       KindTrack,
		Title:      m.Title,
		Artists:    m.Artists,
		Albums:     m.Albums,
		Score:      &score,
	}, nil
}

type spotifyClient interface {
	SearchTracks(ctx context.Context, title, artist string, limit int) ([]spotify.NormalizedTrack, error)
	GetArtist(ctx context.Context, id string) (*spotify.NormalizedArtist, error)
}

// SpotifyProvider adapts the Spotify client to MusicSearchProvider.
type SpotifyProvider struct {
	client spotifyClient
	limit  int
	logger zerolog.Logger
}

// NewSpotifyProvider creates the structured music adapter.
func NewSpotifyProvider(client spotifyClient, limit int, logger zerolog.Logger) *SpotifyProvider {
	return &SpotifyProvider{client: client, limit: limit, logger: logger.With().Str("component", "provider").Logger()}
}

// SearchTracks returns track candidates in catalog order.
func (p *SpotifyProvider) SearchTracks(ctx context.Context, title, artist string) ([]Candidate, error) {
	tracks, err := p.client.SearchTracks(ctx, title, artist, p.limit)
	if err != nil {
		logProviderFailure(p.logger, ProviderSpotify, err)
		return nil, nil
	}
	out := make([]Candidate, 0, len(tracks))
	for _, t := range tracks {
		c := Candidate{
			ProviderID:   ProviderSpotify,
			ExternalID:   t.ID,
			Kind:         KindTrack,
			Title:        t.Title,
			Year:         yearPtr(t.Year),
			Artists:      t.Artists,
			ThumbnailURL: t.ImageURL,
			refs:         t.ArtistIDs,
		}
		if t.Album != "" {
			c.Albums = []string{t.Album}
		}
		out = append(out, c)
	}
	return out, nil
}

// Enrich adds the primary artist's genres, and the artist image when the
// album had none.
func (p *SpotifyProvider) Enrich(ctx context.Context, c *Candidate, _ SeriesHint) {
	if len(c.refs) == 0 {
		return
	}
	artist, err := p.client.GetArtist(ctx, c.refs[0])
	if err != nil {
		logProviderFailure(p.logger, ProviderSpotify, err)
		return
	}
	if len(artist.Genres) > 0 {
		c.Genres = append([]string(nil), artist.Genres...)
	}
	if c.ThumbnailURL == "" {
		c.ThumbnailURL = artist.ImageURL
	}
}

type musicBrainzClient interface {
	SearchRecordings(ctx context.Context, title, artist string, limit int) ([]musicbrainz.NormalizedRecording, error)
	GetFrontCover(ctx context.Context, releaseID string) (string, error)
}

// MusicBrainzProvider adapts the MusicBrainz client to CommunityMusicProvider.
type MusicBrainzProvider struct {
	client musicBrainzClient
	limit  int
	logger zerolog.Logger
}

// NewMusicBrainzProvider creates the community database adapter.
func NewMusicBrainzProvider(client musicBrainzClient, limit int, logger zerolog.Logger) *MusicBrainzProvider {
	return &MusicBrainzProvider{client: client, limit: limit, logger: logger.With().Str("component", "provider").Logger()}
}

// SearchRecordings returns recording candidates in search-score order.
func (p *MusicBrainzProvider) SearchRecordings(ctx context.Context, title, artist string) ([]Candidate, error) {
	recs, err := p.client.SearchRecordings(ctx, title, artist, p.limit)
	if err != nil {
		logProviderFailure(p.logger, ProviderMusicBrainz, err)
		return nil, nil
	}
	out := make([]Candidate, 0, len(recs))
	for _, r := range recs {
		c := Candidate{
			ProviderID: ProviderMusicBrainz,
			ExternalID: r.ID,
			Kind:       KindTrack,
			Title:      r.Title,
			Year:       yearPtr(r.Year),
			Artists:    r.Artists,
			Albums:     r.Albums,
			Genres:     r.Genres,
		}
		if r.ReleaseID != "" {
			c.refs = []string{r.ReleaseID}
		}
		out = append(out, c)
	}
	return out, nil
}

// Enrich fetches the release's front cover from the Cover Art Archive.
func (p *MusicBrainzProvider) Enrich(ctx context.Context, c *Candidate, _ SeriesHint) {
	if c.ThumbnailURL != "" || len(c.refs) == 0 {
		return
	}
	cover, err := p.client.GetFrontCover(ctx, c.refs[0])
	if err != nil {
		if !errors.Is(err, musicbrainz.ErrNotFound) {
			logProviderFailure(p.logger, ProviderMusicBrainz, err)
		}
		return
	}
	c.ThumbnailURL = cover
}

type tmdbClient interface {
	SearchMovies(ctx context.Context, query string, year int) ([]tmdb.NormalizedMovieResult, error)
	GetMovie(ctx context.Context, id int) (*tmdb.NormalizedMovieResult, error)
	SearchSeries(ctx context.Context, query string) ([]tmdb.NormalizedSeriesResult, error)
	GetSeries(ctx context.Context, id int) (*tmdb.NormalizedSeriesResult, error)
	GetEpisode(ctx context.Context, seriesID, season, episode int) (*tmdb.NormalizedEpisodeResult, error)
}

// TMDBMovieProvider adapts TMDB movie search to MovieProvider.
type TMDBMovieProvider struct {
	client tmdbClient
	logger zerolog.Logger
}

// NewTMDBMovieProvider creates the movie adapter.
func NewTMDBMovieProvider(client tmdbClient, logger zerolog.Logger) *TMDBMovieProvider {
	return &TMDBMovieProvider{client: client, logger: logger.With().Str("component", "provider").Logger()}
}

// SearchMovies returns movie candidates. A year-scoped search that finds
// nothing is repeated without the year, since release dates differ by region.
func (p *TMDBMovieProvider) SearchMovies(ctx context.Context, query string, year *int) ([]Candidate, error) {
	var (
		movies []tmdb.NormalizedMovieResult
		err    error
	)
	if year != nil {
		movies, err = p.client.SearchMovies(ctx, query, *year)
	}
	if err == nil && len(movies) == 0 {
		movies, err = p.client.SearchMovies(ctx, query, 0)
	}
	if err != nil {
		logProviderFailure(p.logger, ProviderTMDBMovie, err)
		return nil, nil
	}
	out := make([]Candidate, 0, len(movies))
	for _, m := range movies {
		out = append(out, Candidate{
			ProviderID:   ProviderTMDBMovie,
			ExternalID:   strconv.Itoa(m.ID),
			Kind:         KindMovie,
			Title:        m.Title,
			Year:         yearPtr(m.Year),
			ThumbnailURL: m.PosterURL,
			BackdropURL:  m.BackdropURL,
			Description:  m.Overview,
		})
	}
	return out, nil
}

// Enrich resolves genre names from the movie details.
func (p *TMDBMovieProvider) Enrich(ctx context.Context, c *Candidate, _ SeriesHint) {
	id, err := strconv.Atoi(c.ExternalID)
	if err != nil {
		return
	}
	details, err := p.client.GetMovie(ctx, id)
	if err != nil {
		logProviderFailure(p.logger, ProviderTMDBMovie, err)
		return
	}
	c.Genres = details.Genres
	if c.Description == "" {
		c.Description = details.Overview
	}
}

// TMDBTVProvider adapts TMDB series search to TVProvider.
type TMDBTVProvider struct {
	client tmdbClient
	logger zerolog.Logger
}

// NewTMDBTVProvider creates the series adapter.
func NewTMDBTVProvider(client tmdbClient, logger zerolog.Logger) *TMDBTVProvider {
	return &TMDBTVProvider{client: client, logger: logger.With().Str("component", "provider").Logger()}
}

// SearchSeries returns series candidates, or episode candidates when the
// hint names a season and episode.
func (p *TMDBTVProvider) SearchSeries(ctx context.Context, query string, hint SeriesHint) ([]Candidate, error) {
	shows, err := p.client.SearchSeries(ctx, query)
	if err != nil {
		logProviderFailure(p.logger, ProviderTMDBTV, err)
		return nil, nil
	}
	kind := KindSeries
	if hint.IsSeries && hint.Season != nil && hint.Episode != nil {
		kind = KindEpisode
	}
	out := make([]Candidate, 0, len(shows))
	for _, s := range shows {
		c := Candidate{
			ProviderID:   ProviderTMDBTV,
			ExternalID:   strconv.Itoa(s.ID),
			Kind:         kind,
			Title:        s.Title,
			Year:         yearPtr(s.Year),
			ThumbnailURL: s.PosterURL,
			BackdropURL:  s.BackdropURL,
			Description:  s.Overview,
		}
		if kind == KindEpisode {
			c.Season = intPtr(*hint.Season)
			c.Episode = intPtr(*hint.Episode)
		}
		out = append(out, c)
	}
	return out, nil
}

// Enrich resolves genre names and, for episodes, the episode title,
// synopsis and still. The still replaces the series poster as thumbnail.
func (p *TMDBTVProvider) Enrich(ctx context.Context, c *Candidate, _ SeriesHint) {
	id, err := strconv.Atoi(c.ExternalID)
	if err != nil {
		return
	}
	if details, err := p.client.GetSeries(ctx, id); err != nil {
		logProviderFailure(p.logger, ProviderTMDBTV, err)
	} else {
		c.Genres = details.Genres
	}

	if c.Kind != KindEpisode || c.Season == nil || c.Episode == nil {
		return
	}
	ep, err := p.client.GetEpisode(ctx, id, *c.Season, *c.Episode)
	if err != nil {
		if !errors.Is(err, tmdb.ErrNotFound) {
			logProviderFailure(p.logger, ProviderTMDBTV, err)
		}
		return
	}
	c.EpisodeTitle = ep.Title
	c.EpisodeDescription = ep.Overview
	if ep.StillURL != "" {
		c.ThumbnailURL = ep.StillURL
	}
}

type omdbClient interface {
	GetByTitle(ctx context.Context, title string) (*omdb.NormalizedTitle, error)
}

// OMDBProvider adapts OMDb title lookup to FreeTextProvider.
type OMDBProvider struct {
	client omdbClient
	logger zerolog.Logger
}

// NewOMDBProvider creates the free-text adapter.
func NewOMDBProvider(client omdbClient, logger zerolog.Logger) *OMDBProvider {
	return &OMDBProvider{client: client, logger: logger.With().Str("component", "provider").Logger()}
}

// SearchTitle returns the single OMDb match, if any.
func (p *OMDBProvider) SearchTitle(ctx context.Context, query string) (*Candidate, error) {
	t, err := p.client.GetByTitle(ctx, query)
	if err != nil {
		if !errors.Is(err, omdb.ErrNotFound) {
			logProviderFailure(p.logger, ProviderOMDB, err)
		}
		return nil, nil
	}
	kind := KindMovie
	if t.Type == "series" {
		kind = KindSeries
	}
	return &Candidate{
		ProviderID:   ProviderOMDB,
		ExternalID:   t.ImdbID,
		Kind:         kind,
		Title:        t.Title,
		Year:         yearPtr(t.Year),
		Genres:       t.Genres,
		ThumbnailURL: t.PosterURL,
		Description:  t.Plot,
	}, nil
}
