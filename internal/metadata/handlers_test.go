package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerStore struct {
	metadata map[string]*PersistedMetadata
	requests map[string]*ResolveRequest
	err      error
}

func (s *handlerStore) GetMetadata(ctx context.Context, fileID string) (*PersistedMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	if m, ok := s.metadata[fileID]; ok {
		return m, nil
	}
	return nil, ErrMetadataNotFound
}

func (s *handlerStore) LatestRequest(ctx context.Context, fileID string) (*ResolveRequest, error) {
	if r, ok := s.requests[fileID]; ok {
		return r, nil
	}
	return nil, ErrRequestNotFound
}

type recordingSubmitter struct {
	submitted []ResolveRequest
	err       error
}

func (s *recordingSubmitter) Submit(req ResolveRequest) error {
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, req)
	return nil
}

func setupTestHandlers(store *handlerStore, sub *recordingSubmitter) *echo.Echo {
	e := echo.New()
	h := NewHandlers(store, sub, zerolog.Nop())
	h.RegisterRoutes(e.Group("/api/v1"))
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_Resolve(t *testing.T) {
	sub := &recordingSubmitter{}
	e := setupTestHandlers(&handlerStore{}, sub)

	rec := doRequest(e, http.MethodPost, "/api/v1/resolve",
		`{"fileId":"f1","filename":"track01.mp3","category":"music","basicTitle":"Daft Punk - One More Time","fingerprint":{"data":"AQID","durationSeconds":320}}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sub.submitted, 1)
	got := sub.submitted[0]
	assert.Equal(t, "f1", got.FileID)
	assert.Equal(t, CategoryMusic, got.Category)
	require.NotNil(t, got.Fingerprint)
	assert.Equal(t, []byte{1, 2, 3}, got.Fingerprint.Data)

	var body queuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "queued", body.Status)
}

func TestHandlers_ResolveInvalid(t *testing.T) {
	sub := &recordingSubmitter{}
	e := setupTestHandlers(&handlerStore{}, sub)

	rec := doRequest(e, http.MethodPost, "/api/v1/resolve", `{"fileId":"f1","filename":"x.mkv","category":"video"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/resolve", `{"fileId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, sub.submitted)
}

func TestHandlers_ResolveQueueFull(t *testing.T) {
	e := setupTestHandlers(&handlerStore{}, &recordingSubmitter{err: errors.New("enrichment queue is full")})

	rec := doRequest(e, http.MethodPost, "/api/v1/resolve", `{"fileId":"f1","filename":"Inception.2010.mkv","category":"video"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlers_GetMetadata(t *testing.T) {
	store := &handlerStore{metadata: map[string]*PersistedMetadata{
		"f1": {FileID: "f1", Title: "Inception", Artists: []string{}, Albums: []string{}, Genres: []string{}},
	}}
	e := setupTestHandlers(store, &recordingSubmitter{})

	rec := doRequest(e, http.MethodGet, "/api/v1/files/f1/metadata", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var m PersistedMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Inception", m.Title)

	rec = doRequest(e, http.MethodGet, "/api/v1/files/missing/metadata", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_GetMetadataStoreError(t *testing.T) {
	e := setupTestHandlers(&handlerStore{err: errors.New("database is locked")}, &recordingSubmitter{})

	rec := doRequest(e, http.MethodGet, "/api/v1/files/f1/metadata", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlers_ReresolveReplaysLastRequest(t *testing.T) {
	year := 2010
	store := &handlerStore{requests: map[string]*ResolveRequest{
		"f1": {FileID: "f1", Filename: "Inceptoin.mkv", Category: CategoryVideo},
	}}
	sub := &recordingSubmitter{}
	e := setupTestHandlers(store, sub)

	rec := doRequest(e, http.MethodPost, "/api/v1/files/f1/resolve", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/files/f1/resolve", `{"basicTitle":"Inception","basicYear":2010}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, sub.submitted, 2)
	assert.Equal(t, "Inceptoin.mkv", sub.submitted[0].Filename)
	assert.Equal(t, "Inception", sub.submitted[1].BasicTitle)
	assert.Equal(t, &year, sub.submitted[1].BasicYear)
	assert.Empty(t, store.requests["f1"].BasicTitle, "stored request is not mutated")
}

func TestHandlers_ReresolveWithFullBody(t *testing.T) {
	sub := &recordingSubmitter{}
	e := setupTestHandlers(&handlerStore{}, sub)

	rec := doRequest(e, http.MethodPost, "/api/v1/files/f9/resolve", `{"fileId":"ignored","filename":"Heat.1995.mkv","category":"video"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sub.submitted, 1)
	assert.Equal(t, "f9", sub.submitted[0].FileID)
}

func TestHandlers_ReresolveUnknownFile(t *testing.T) {
	e := setupTestHandlers(&handlerStore{}, &recordingSubmitter{})

	rec := doRequest(e, http.MethodPost, "/api/v1/files/nope/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
