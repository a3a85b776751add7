package mock

import (
	"context"
	"strings"

	"github.com/mediashelf/mediashelf/internal/metadata/omdb"
)

// OMDBClient is a mock implementation of the OMDb client.
type OMDBClient struct{}

// NewOMDBClient creates a new mock OMDb client.
func NewOMDBClient() *OMDBClient {
	return &OMDBClient{}
}

func (c *OMDBClient) Name() string {
	return "omdb-mock"
}

func (c *OMDBClient) IsConfigured() bool {
	return true
}

func (c *OMDBClient) GetByTitle(ctx context.Context, title string) (*omdb.NormalizedTitle, error) {
	t, ok := mockTitles[strings.ToLower(strings.TrimSpace(title))]
	if !ok {
		return nil, omdb.ErrNotFound
	}
	return &t, nil
}

var mockTitles = map[string]omdb.NormalizedTitle{
	"the matrix": {
		ImdbID:    "tt0133093",
		Title:     "The Matrix",
		Year:      1999,
		Type:      "movie",
		PosterURL: "https://m.media-amazon.com/images/M/matrix.jpg",
		Plot:      "When a beautiful stranger leads computer hacker Neo to a forbidding underworld, he discovers the shocking truth.",
		Genres:    []string{"Action", "Sci-Fi"},
	},
	"pulp fiction": {
		ImdbID:    "tt0110912",
		Title:     "Pulp Fiction",
		Year:      1994,
		Type:      "movie",
		PosterURL: "https://m.media-amazon.com/images/M/pulp.jpg",
		Plot:      "The lives of two mob hitmen, a boxer, a gangster and his wife intertwine.",
		Genres:    []string{"Crime", "Drama"},
	},
	"breaking bad": {
		ImdbID: "tt0903747",
		Title:  "Breaking Bad",
		Year:   2008,
		Type:   "series",
		Genres: []string{"Crime", "Drama", "Thriller"},
	},
}
