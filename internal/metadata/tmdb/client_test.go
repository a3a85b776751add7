package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.TMDBConfig{
		APIKey:       "test-api-key",
		BaseURL:      server.URL,
		ImageBaseURL: "https://image.tmdb.org/t/p",
		Timeout:      5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{"with key", "abc123", true},
		{"without key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(config.TMDBConfig{APIKey: tt.apiKey}, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_SearchMovies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("query"); q != "Matrix" {
			t.Errorf("unexpected query: %s", q)
		}
		if key := r.URL.Query().Get("api_key"); key != "test-api-key" {
			t.Errorf("unexpected api key: %s", key)
		}
		if year := r.URL.Query().Get("year"); year != "" {
			t.Errorf("year should not be sent, got %s", year)
		}

		json.NewEncoder(w).Encode(SearchMoviesResponse{
			Page:         1,
			TotalResults: 2,
			Results: []MovieResult{
				{ID: 604, Title: "The Matrix Reloaded", ReleaseDate: "2003-05-15", VoteCount: 10},
				{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30", VoteCount: 25000, PosterPath: strPtr("/poster.jpg")},
			},
		})
	}))
	defer server.Close()

	results, err := newTestClient(server).SearchMovies(context.Background(), "Matrix", 0)
	if err != nil {
		t.Fatalf("SearchMovies() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("SearchMovies() returned %d results, want 2", len(results))
	}
	if results[0].ID != 603 {
		t.Errorf("results[0].ID = %d, want 603 (highest vote count first)", results[0].ID)
	}
	if results[0].Year != 1999 {
		t.Errorf("results[0].Year = %d, want 1999", results[0].Year)
	}
	if results[0].PosterURL != "https://image.tmdb.org/t/p/w500/poster.jpg" {
		t.Errorf("results[0].PosterURL = %q", results[0].PosterURL)
	}
}

func TestClient_SearchMovies_WithYear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if year := r.URL.Query().Get("year"); year != "1999" {
			t.Errorf("unexpected year: %s", year)
		}
		json.NewEncoder(w).Encode(SearchMoviesResponse{})
	}))
	defer server.Close()

	if _, err := newTestClient(server).SearchMovies(context.Background(), "Matrix", 1999); err != nil {
		t.Fatalf("SearchMovies() error = %v", err)
	}
}

func TestClient_SearchMovies_NoAPIKey(t *testing.T) {
	client := NewClient(config.TMDBConfig{}, zerolog.Nop())
	if _, err := client.SearchMovies(context.Background(), "Matrix", 0); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("SearchMovies() error = %v, want ErrAPIKeyMissing", err)
	}
}

func TestClient_GetMovie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(MovieDetails{
			ID:          603,
			Title:       "The Matrix",
			ReleaseDate: "1999-03-30",
			ImdbID:      "tt0133093",
			Genres:      []Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}},
		})
	}))
	defer server.Close()

	movie, err := newTestClient(server).GetMovie(context.Background(), 603)
	if err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}
	if len(movie.Genres) != 2 || movie.Genres[1] != "Science Fiction" {
		t.Errorf("Genres = %v", movie.Genres)
	}
	if movie.ImdbID != "tt0133093" {
		t.Errorf("ImdbID = %q", movie.ImdbID)
	}
}

func TestClient_SearchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SearchTVResponse{
			Results: []TVResult{
				{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", BackdropPath: strPtr("/bd.jpg")},
			},
		})
	}))
	defer server.Close()

	results, err := newTestClient(server).SearchSeries(context.Background(), "Breaking Bad")
	if err != nil {
		t.Fatalf("SearchSeries() error = %v", err)
	}
	if len(results) != 1 || results[0].Year != 2008 {
		t.Fatalf("SearchSeries() = %+v", results)
	}
	if results[0].BackdropURL != "https://image.tmdb.org/t/p/w780/bd.jpg" {
		t.Errorf("BackdropURL = %q", results[0].BackdropURL)
	}
}

func TestClient_GetEpisode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1396/season/2/episode/5" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(EpisodeDetails{
			Name:          "Breakage",
			Overview:      "Walt and Jesse pick up the pieces.",
			SeasonNumber:  2,
			EpisodeNumber: 5,
			StillPath:     strPtr("/still.jpg"),
		})
	}))
	defer server.Close()

	ep, err := newTestClient(server).GetEpisode(context.Background(), 1396, 2, 5)
	if err != nil {
		t.Fatalf("GetEpisode() error = %v", err)
	}
	if ep.Title != "Breakage" || ep.StillURL != "https://image.tmdb.org/t/p/w300/still.jpg" {
		t.Errorf("GetEpisode() = %+v", ep)
	}
}

func TestClient_GetImageURL(t *testing.T) {
	client := NewClient(config.TMDBConfig{ImageBaseURL: "https://image.tmdb.org/t/p"}, zerolog.Nop())
	if got := client.GetImageURL("", "w500"); got != "" {
		t.Errorf("GetImageURL(empty) = %q", got)
	}
	if got := client.GetImageURL("/abc.jpg", "original"); got != "https://image.tmdb.org/t/p/original/abc.jpg" {
		t.Errorf("GetImageURL() = %q", got)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, ErrAPIError},
		{"server error", http.StatusInternalServerError, ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(ErrorResponse{StatusCode: 7, StatusMessage: "nope"})
			}))
			defer server.Close()

			_, err := newTestClient(server).GetMovie(context.Background(), 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("GetMovie() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	if _, err := newTestClient(server).SearchSeries(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}
