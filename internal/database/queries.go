package database

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

// Store implements metadata.Store on top of DB.
type Store struct {
	db *DB
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const upsertMetadataSQL = `
INSERT INTO file_metadata (
	file_id, category, provider_id, external_id, kind, title, year,
	artists, albums, genres, thumbnail_url, backdrop_url, description,
	episode_title, episode_description, season, episode,
	thumbnail_local_path, stage, variant_index, ai_assisted, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (file_id) DO UPDATE SET
	category = excluded.category,
	provider_id = excluded.provider_id,
	external_id = excluded.external_id,
	kind = excluded.kind,
	title = excluded.title,
	year = excluded.year,
	artists = excluded.artists,
	albums = excluded.albums,
	genres = excluded.genres,
	thumbnail_url = excluded.thumbnail_url,
	backdrop_url = excluded.backdrop_url,
	description = excluded.description,
	episode_title = excluded.episode_title,
	episode_description = excluded.episode_description,
	season = excluded.season,
	episode = excluded.episode,
	thumbnail_local_path = excluded.thumbnail_local_path,
	stage = excluded.stage,
	variant_index = excluded.variant_index,
	ai_assisted = excluded.ai_assisted,
	updated_at = excluded.updated_at`

// UpsertMetadata inserts or replaces the metadata row for a file.
func (s *Store) UpsertMetadata(ctx context.Context, m metadata.PersistedMetadata) error {
	artists, err := encodeList(m.Artists)
	if err != nil {
		return err
	}
	albums, err := encodeList(m.Albums)
	if err != nil {
		return err
	}
	genres, err := encodeList(m.Genres)
	if err != nil {
		return err
	}

	_, err = s.db.conn.ExecContext(ctx, s.db.rebind(upsertMetadataSQL),
		m.FileID, string(m.Category), m.ProviderID, m.ExternalID, string(m.Kind), m.Title, nullInt(m.Year),
		artists, albums, genres, m.ThumbnailURL, m.BackdropURL, m.Description,
		m.EpisodeTitle, m.EpisodeDescription, nullInt(m.Season), nullInt(m.Episode),
		m.ThumbnailLocalPath, string(m.Stage), m.VariantIndex, m.AIAssisted, m.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert metadata: %w", err)
	}
	return nil
}

const getMetadataSQL = `
SELECT file_id, category, provider_id, external_id, kind, title, year,
	artists, albums, genres, thumbnail_url, backdrop_url, description,
	episode_title, episode_description, season, episode,
	thumbnail_local_path, stage, variant_index, ai_assisted, updated_at
FROM file_metadata WHERE file_id = ?`

// GetMetadata returns the metadata row for a file or metadata.ErrMetadataNotFound.
func (s *Store) GetMetadata(ctx context.Context, fileID string) (*metadata.PersistedMetadata, error) {
	var (
		m                       metadata.PersistedMetadata
		category, kind, stage   string
		year, season, episode   sql.NullInt64
		artists, albums, genres string
	)
	err := s.db.conn.QueryRowContext(ctx, s.db.rebind(getMetadataSQL), fileID).Scan(
		&m.FileID, &category, &m.ProviderID, &m.ExternalID, &kind, &m.Title, &year,
		&artists, &albums, &genres, &m.ThumbnailURL, &m.BackdropURL, &m.Description,
		&m.EpisodeTitle, &m.EpisodeDescription, &season, &episode,
		&m.ThumbnailLocalPath, &stage, &m.VariantIndex, &m.AIAssisted, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, metadata.ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	m.Category = metadata.Category(category)
	m.Kind = metadata.CandidateKind(kind)
	m.Stage = metadata.Stage(stage)
	m.Year = intFromNull(year)
	m.Season = intFromNull(season)
	m.Episode = intFromNull(episode)
	if m.Artists, err = decodeList(artists); err != nil {
		return nil, err
	}
	if m.Albums, err = decodeList(albums); err != nil {
		return nil, err
	}
	if m.Genres, err = decodeList(genres); err != nil {
		return nil, err
	}
	return &m, nil
}

const insertAttemptSQL = `
INSERT INTO resolution_attempts (
	run_id, file_id, filename, category, basic_title, basic_artist, basic_year,
	fingerprint, fingerprint_duration, outcome, provider, tries, ai_assisted,
	error, started_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// RecordAttempt stores the diagnostic row for one resolver run together with
// the request it ran on, so exhausted files can be retried later.
func (s *Store) RecordAttempt(ctx context.Context, a metadata.Attempt) error {
	req := a.Request
	fingerprint, duration := "", 0
	if req.Fingerprint != nil {
		fingerprint = base64.StdEncoding.EncodeToString(req.Fingerprint.Data)
		duration = req.Fingerprint.DurationSeconds
	}

	_, err := s.db.conn.ExecContext(ctx, s.db.rebind(insertAttemptSQL),
		a.RunID, req.FileID, req.Filename, string(req.Category), req.BasicTitle, req.BasicArtist, nullInt(req.BasicYear),
		fingerprint, duration, string(a.Outcome), a.Provider, a.Tries, a.AIAssisted,
		a.Error, a.StartedAt.UTC(), a.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

const listExhaustedSQL = `
SELECT a.file_id, a.filename, a.category, a.basic_title, a.basic_artist, a.basic_year,
	a.fingerprint, a.fingerprint_duration
FROM resolution_attempts a
WHERE a.outcome = ?
	AND a.completed_at < ?
	AND a.completed_at = (
		SELECT MAX(b.completed_at) FROM resolution_attempts b WHERE b.file_id = a.file_id
	)
	AND NOT EXISTS (SELECT 1 FROM file_metadata m WHERE m.file_id = a.file_id)
ORDER BY a.completed_at
LIMIT ?`

// ListExhausted returns the original requests of files whose latest run was
// exhausted before olderThan and that still have no metadata, oldest first.
func (s *Store) ListExhausted(ctx context.Context, olderThan time.Time, limit int) ([]metadata.ResolveRequest, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(listExhaustedSQL),
		string(metadata.OutcomeExhausted), olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exhausted files: %w", err)
	}
	defer rows.Close()

	var out []metadata.ResolveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exhausted file: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

const latestRequestSQL = `
SELECT file_id, filename, category, basic_title, basic_artist, basic_year,
	fingerprint, fingerprint_duration
FROM resolution_attempts
WHERE file_id = ?
ORDER BY completed_at DESC
LIMIT 1`

// LatestRequest returns the request of the most recent run for a file.
func (s *Store) LatestRequest(ctx context.Context, fileID string) (*metadata.ResolveRequest, error) {
	row := s.db.conn.QueryRowContext(ctx, s.db.rebind(latestRequestSQL), fileID)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, metadata.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest request: %w", err)
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*metadata.ResolveRequest, error) {
	var (
		req         metadata.ResolveRequest
		category    string
		year        sql.NullInt64
		fingerprint string
		duration    int
	)
	if err := row.Scan(&req.FileID, &req.Filename, &category, &req.BasicTitle, &req.BasicArtist, &year,
		&fingerprint, &duration); err != nil {
		return nil, err
	}
	req.Category = metadata.Category(category)
	req.BasicYear = intFromNull(year)
	if fingerprint != "" {
		if data, err := base64.StdEncoding.DecodeString(fingerprint); err == nil {
			req.Fingerprint = &metadata.Fingerprint{Data: data, DurationSeconds: duration}
		}
	}
	return &req, nil
}

// CountAttempts returns the number of recorded runs per outcome.
func (s *Store) CountAttempts(ctx context.Context) (map[metadata.Outcome]int, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM resolution_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[metadata.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attempt count: %w", err)
		}
		counts[metadata.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return out, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
