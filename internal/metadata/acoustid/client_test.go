package acoustid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/config"
)

func newTestClient(server *httptest.Server) *Client {
	return NewClient(config.AcoustIDConfig{
		ClientKey: "key",
		BaseURL:   server.URL,
		MinScore:  0.8,
		RateLimit: 100,
		Timeout:   5,
	}, zerolog.Nop())
}

func TestClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "key", r.PostForm.Get("client"))
		assert.Equal(t, "213", r.PostForm.Get("duration"))
		assert.Equal(t, "AQADtE", r.PostForm.Get("fingerprint"))
		assert.Equal(t, "recordings releasegroups", r.PostForm.Get("meta"))
		w.Write([]byte(`{"status":"ok","results":[
			{"id":"low","score":0.5,"recordings":[{"id":"r0","title":"Wrong"}]},
			{"id":"good","score":0.93,"recordings":[
				{"id":"r-empty","title":""},
				{"id":"r1","title":"One More Time","artists":[{"name":"Daft Punk"}],"releasegroups":[{"id":"rg1","title":"Discovery"}]}
			]}
		]}`))
	}))
	defer server.Close()

	m, err := newTestClient(server).Lookup(context.Background(), []byte("AQADtE"), 213)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "r1", m.RecordingID)
	assert.Equal(t, "One More Time", m.Title)
	assert.Equal(t, []string{"Daft Punk"}, m.Artists)
	assert.Equal(t, []string{"Discovery"}, m.Albums)
	assert.InDelta(t, 0.93, m.Score, 1e-9)
}

func TestClient_Lookup_BelowMinScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","results":[{"id":"x","score":0.79,"recordings":[{"id":"r","title":"T"}]}]}`))
	}))
	defer server.Close()

	m, err := newTestClient(server).Lookup(context.Background(), []byte("fp"), 10)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestClient_Lookup_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewClient(config.AcoustIDConfig{}, zerolog.Nop()).Lookup(context.Background(), []byte("fp"), 10)
		assert.ErrorIs(t, err, ErrClientKeyMissing)
	})

	t.Run("missing fingerprint", func(t *testing.T) {
		_, err := NewClient(config.AcoustIDConfig{ClientKey: "k"}, zerolog.Nop()).Lookup(context.Background(), nil, 10)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"error","error":{"code":4,"message":"invalid API key"}}`))
		}))
		defer server.Close()
		_, err := newTestClient(server).Lookup(context.Background(), []byte("fp"), 10)
		assert.ErrorIs(t, err, ErrAPIError)
		assert.Contains(t, err.Error(), "invalid API key")
	})
}
