package musicbrainz

// SearchResponse is the response from /recording?query=...
type SearchResponse struct {
	Recordings []Recording `json:"recordings"`
	Count      int         `json:"count"`
	Offset     int         `json:"offset"`
}

// Recording is a MusicBrainz recording search hit.
type Recording struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Length           int            `json:"length,omitempty"`
	Score            int            `json:"score,omitempty"`
	Disambiguation   string         `json:"disambiguation,omitempty"`
	FirstReleaseDate string         `json:"first-release-date,omitempty"`
	ArtistCredit     []ArtistCredit `json:"artist-credit,omitempty"`
	Releases         []Release      `json:"releases,omitempty"`
	Tags             []Tag          `json:"tags,omitempty"`
}

// Release is a release a recording appears on.
type Release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Date         string       `json:"date,omitempty"`
	Status       string       `json:"status,omitempty"`
	ReleaseGroup ReleaseGroup `json:"release-group"`
}

// ReleaseGroup groups releases of the same album.
type ReleaseGroup struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PrimaryType string `json:"primary-type,omitempty"`
}

// ArtistCredit is one credited artist of a recording.
type ArtistCredit struct {
	Name   string `json:"name"`
	Artist Artist `json:"artist"`
}

// Artist is a MusicBrainz artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tag is a folksonomy tag; used as genres.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CoverArtResponse is a Cover Art Archive release listing.
type CoverArtResponse struct {
	Images  []CoverArtImage `json:"images"`
	Release string          `json:"release"`
}

// CoverArtImage is a single cover art image.
type CoverArtImage struct {
	Image      string `json:"image"`
	Front      bool   `json:"front"`
	Thumbnails struct {
		Small string `json:"250"`
		Large string `json:"500"`
	} `json:"thumbnails"`
}

// NormalizedRecording is a recording reduced to what the resolver consumes.
type NormalizedRecording struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	Artists   []string `json:"artists"`
	Albums    []string `json:"albums"`
	Genres    []string `json:"genres,omitempty"`
	ReleaseID string   `json:"releaseId,omitempty"`
	Score     int      `json:"score"`
}
