package metadata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidRequest   = errors.New("invalid resolve request")
	ErrExtractionFailed = errors.New("title extraction failed")
)

// Category is the library section a file was uploaded into.
type Category string

const (
	CategoryVideo Category = "video"
	CategoryMusic Category = "music"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryVideo || c == CategoryMusic
}

// CandidateKind classifies what a provider matched.
type CandidateKind string

const (
	KindMovie   CandidateKind = "movie"
	KindSeries  CandidateKind = "series"
	KindEpisode CandidateKind = "episode"
	KindTrack   CandidateKind = "track"
)

// Provider identifiers used in candidates and provenance.
const (
	ProviderAcoustID    = "acoustid"
	ProviderSpotify     = "spotify"
	ProviderMusicBrainz = "musicbrainz"
	ProviderTMDBMovie   = "tmdb-movie"
	ProviderTMDBTV      = "tmdb-tv"
	ProviderOMDB        = "omdb"
)

// Fingerprint is a pre-computed acoustic signature of an audio file.
type Fingerprint struct {
	Data            []byte `json:"data"`
	DurationSeconds int    `json:"durationSeconds"`
}

// ResolveRequest is created once per uploaded file when enrichment is triggered.
type ResolveRequest struct {
	FileID      string       `json:"fileId"`
	Filename    string       `json:"filename"`
	Category    Category     `json:"category"`
	BasicTitle  string       `json:"basicTitle,omitempty"`
	BasicArtist string       `json:"basicArtist,omitempty"`
	BasicYear   *int         `json:"basicYear,omitempty"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
}

// Validate rejects requests the resolver must abandon rather than resolve.
func (r ResolveRequest) Validate() error {
	if strings.TrimSpace(r.FileID) == "" {
		return fmt.Errorf("%w: file id is required", ErrInvalidRequest)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, r.Category)
	}
	name := r.BasicTitle
	if len([]rune(strings.TrimSpace(name))) < minMeaningfulLength {
		name = stripExtension(r.Filename)
	}
	if len([]rune(cleanSeparators(name))) < minMeaningfulLength {
		return fmt.Errorf("%w: name too short after cleaning", ErrInvalidRequest)
	}
	return nil
}

// SeriesHint is derived once per request from the filename.
type SeriesHint struct {
	IsSeries bool `json:"isSeries"`
	Season   *int `json:"season,omitempty"`
	Episode  *int `json:"episode,omitempty"`
}

// Candidate is a provider's guess at the identity of a file.
type Candidate struct {
	ProviderID         string        `json:"providerId"`
	ExternalID         string        `json:"externalId"`
	Kind               CandidateKind `json:"kind"`
	Title              string        `json:"title"`
	Year               *int          `json:"year,omitempty"`
	Artists            []string      `json:"artists,omitempty"`
	Albums             []string      `json:"albums,omitempty"`
	Genres             []string      `json:"genres,omitempty"`
	ThumbnailURL       string        `json:"thumbnailUrl,omitempty"`
	BackdropURL        string        `json:"backdropUrl,omitempty"`
	Description        string        `json:"description,omitempty"`
	EpisodeTitle       string        `json:"episodeTitle,omitempty"`
	EpisodeDescription string        `json:"episodeDescription,omitempty"`
	Season             *int          `json:"season,omitempty"`
	Episode            *int          `json:"episode,omitempty"`
	// Score is only meaningful for fingerprint lookups.
	Score *float64 `json:"score,omitempty"`

	// refs holds provider-private ids needed to enrich the candidate later
	// (artist ids, release id). Not serialized.
	refs []string
}

// Verdict is the accept/reject outcome of comparing a query with a candidate.
type Verdict struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason,omitempty"`
}

// Stage names a state of the resolution cascade.
type Stage string

const (
	StageFingerprint Stage = "fingerprint"
	StageStructured  Stage = "structured"
	StageCommunityDB Stage = "community-db"
	StageAIAssist    Stage = "ai-assist"
)

// Provenance records which path produced an accepted candidate.
type Provenance struct {
	Provider     string `json:"provider"`
	Stage        Stage  `json:"stage"`
	VariantIndex int    `json:"variantIndex"`
	Variant      string `json:"variant,omitempty"`
	AIAssisted   bool   `json:"aiAssisted"`
}

// Resolution is the outcome of one resolver run. A nil Candidate means the
// cascade was exhausted without an acceptance.
type Resolution struct {
	Candidate  *Candidate `json:"candidate,omitempty"`
	Provenance Provenance `json:"provenance"`
	Attempts   int        `json:"attempts"`
}

// Resolved reports whether a candidate was accepted.
func (r Resolution) Resolved() bool {
	return r.Candidate != nil
}

// PersistedMetadata is the durable record kept per file.
type PersistedMetadata struct {
	FileID             string        `json:"fileId"`
	Category           Category      `json:"category"`
	ProviderID         string        `json:"providerId"`
	ExternalID         string        `json:"externalId"`
	Kind               CandidateKind `json:"kind"`
	Title              string        `json:"title"`
	Year               *int          `json:"year,omitempty"`
	Artists            []string      `json:"artists"`
	Albums             []string      `json:"albums"`
	Genres             []string      `json:"genres"`
	ThumbnailURL       string        `json:"thumbnailUrl,omitempty"`
	BackdropURL        string        `json:"backdropUrl,omitempty"`
	Description        string        `json:"description,omitempty"`
	EpisodeTitle       string        `json:"episodeTitle,omitempty"`
	EpisodeDescription string        `json:"episodeDescription,omitempty"`
	Season             *int          `json:"season,omitempty"`
	Episode            *int          `json:"episode,omitempty"`
	ThumbnailLocalPath string        `json:"thumbnailLocalPath,omitempty"`
	Stage              Stage         `json:"stage"`
	VariantIndex       int           `json:"variantIndex"`
	AIAssisted         bool          `json:"aiAssisted"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// NewPersistedMetadata builds the durable row for an accepted resolution.
func NewPersistedMetadata(fileID string, category Category, res Resolution) PersistedMetadata {
	c := res.Candidate
	return PersistedMetadata{
		FileID:             fileID,
		Category:           category,
		ProviderID:         c.ProviderID,
		ExternalID:         c.ExternalID,
		Kind:               c.Kind,
		Title:              c.Title,
		Year:               c.Year,
		Artists:            nonNil(c.Artists),
		Albums:             nonNil(c.Albums),
		Genres:             nonNil(c.Genres),
		ThumbnailURL:       c.ThumbnailURL,
		BackdropURL:        c.BackdropURL,
		Description:        c.Description,
		EpisodeTitle:       c.EpisodeTitle,
		EpisodeDescription: c.EpisodeDescription,
		Season:             c.Season,
		Episode:            c.Episode,
		Stage:              res.Provenance.Stage,
		VariantIndex:       res.Provenance.VariantIndex,
		AIAssisted:         res.Provenance.AIAssisted,
	}
}

// Outcome classifies a finished resolver run for logs and the attempts table.
type Outcome string

const (
	OutcomeResolved        Outcome = "resolved"
	OutcomeExhausted       Outcome = "exhausted"
	OutcomeAbandoned       Outcome = "abandoned"
	OutcomePersistFailed   Outcome = "persist-failed"
	OutcomeInternalFailure Outcome = "internal-failure"
)

// Attempt is the diagnostic record of one resolver run.
type Attempt struct {
	RunID       string
	Request     ResolveRequest
	Outcome     Outcome
	Provider    string
	Tries       int
	AIAssisted  bool
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func intPtr(i int) *int {
	return &i
}
