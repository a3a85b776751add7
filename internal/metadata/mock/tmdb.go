// Package mock provides canned catalog clients for developer mode and
// scripted providers for resolver tests.
package mock

import (
	"context"
	"strconv"
	"strings"

	"github.com/mediashelf/mediashelf/internal/metadata/tmdb"
)

// TMDBClient is a mock implementation of the TMDB client backed by a small
// fixed catalog.
type TMDBClient struct{}

// NewTMDBClient creates a new mock TMDB client.
func NewTMDBClient() *TMDBClient {
	return &TMDBClient{}
}

func (c *TMDBClient) Name() string {
	return "tmdb-mock"
}

func (c *TMDBClient) IsConfigured() bool {
	return true
}

func (c *TMDBClient) SearchMovies(ctx context.Context, query string, year int) ([]tmdb.NormalizedMovieResult, error) {
	query = strings.ToLower(query)
	var results []tmdb.NormalizedMovieResult
	for _, movie := range mockMovies {
		if strings.Contains(strings.ToLower(movie.Title), query) && (year == 0 || movie.Year == year) {
			results = append(results, movie)
		}
	}
	return results, nil
}

func (c *TMDBClient) GetMovie(ctx context.Context, id int) (*tmdb.NormalizedMovieResult, error) {
	for i := range mockMovies {
		if mockMovies[i].ID == id {
			movie := mockMovies[i]
			return &movie, nil
		}
	}
	return nil, tmdb.ErrNotFound
}

func (c *TMDBClient) SearchSeries(ctx context.Context, query string) ([]tmdb.NormalizedSeriesResult, error) {
	query = strings.ToLower(query)
	var results []tmdb.NormalizedSeriesResult
	for _, series := range mockSeries {
		if strings.Contains(strings.ToLower(series.Title), query) {
			results = append(results, series)
		}
	}
	return results, nil
}

func (c *TMDBClient) GetSeries(ctx context.Context, id int) (*tmdb.NormalizedSeriesResult, error) {
	for i := range mockSeries {
		if mockSeries[i].ID == id {
			series := mockSeries[i]
			return &series, nil
		}
	}
	return nil, tmdb.ErrNotFound
}

func (c *TMDBClient) GetEpisode(ctx context.Context, seriesID, season, episode int) (*tmdb.NormalizedEpisodeResult, error) {
	if _, err := c.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}
	return &tmdb.NormalizedEpisodeResult{
		SeasonNumber:  season,
		EpisodeNumber: episode,
		Title:         "Episode " + strconv.Itoa(episode),
		Overview:      "Mock synopsis.",
		StillURL:      "https://image.tmdb.org/t/p/w300/mock-still.jpg",
	}, nil
}


var mockMovies = []tmdb.NormalizedMovieResult{
	{
		ID:          603,
		Title:       "The Matrix",
		Year:        1999,
		Overview:    "A computer hacker learns about the true nature of reality and his role in the war against its controllers.",
		PosterURL:   "https://image.tmdb.org/t/p/w500/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg",
		BackdropURL: "https://image.tmdb.org/t/p/w780/fNG7i7RqMErkcqhohV2a6cV1Ehy.jpg",
		ImdbID:      "tt0133093",
		Genres:      []string{"Action", "Science Fiction"},
	},
	{
		ID:          27205,
		Title:       "Inception",
		Year:        2010,
		Overview:    "A thief who steals corporate secrets through dream-sharing technology is given the inverse task.",
		PosterURL:   "https://image.tmdb.org/t/p/w500/oYuLEt3zVCKq57qu2F8dT7NIa6f.jpg",
		BackdropURL: "https://image.tmdb.org/t/p/w780/s3TBrRGB1iav7gFOCNx3H31MoES.jpg",
		ImdbID:      "tt1375666",
		Genres:      []string{"Action", "Science Fiction", "Adventure"},
	},
	{
		ID:          550,
		Title:       "Fight Club",
		Year:        1999,
		Overview:    "An insomniac office worker and a soap maker form an underground fight club.",
		PosterURL:   "https://image.tmdb.org/t/p/w500/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
		ImdbID:      "tt0137523",
		Genres:      []string{"Drama"},
	},
}

var mockSeries = []tmdb.NormalizedSeriesResult{
	{
		ID:          1396,
		Title:       "Breaking Bad",
		Year:        2008,
		Overview:    "A chemistry teacher diagnosed with cancer turns to manufacturing methamphetamine.",
		PosterURL:   "https://image.tmdb.org/t/p/w500/ggFHVNu6YYI5L9pCfOacjizRGt.jpg",
		BackdropURL: "https://image.tmdb.org/t/p/w780/tsRy63Mu5cu8etL1X7ZLyf7UYyM.jpg",
		Genres:      []string{"Drama", "Crime"},
	},
	{
		ID:        121,
		Title:     "Doctor Who",
		Year:      1963,
		Overview:  "The adventures of the Doctor, a time-travelling alien.",
		PosterURL: "https://image.tmdb.org/t/p/w500/classic.jpg",
		Genres:    []string{"Sci-Fi & Fantasy"},
	},
	{
		ID:        57243,
		Title:     "Doctor Who",
		Year:      2005,
		Overview:  "The Doctor returns in the revived series.",
		PosterURL: "https://image.tmdb.org/t/p/w500/revival.jpg",
		Genres:    []string{"Sci-Fi & Fantasy", "Drama"},
	},
}
