package acoustid

// LookupResponse is the response from /v2/lookup.
type LookupResponse struct {
	Status  string    `json:"status"`
	Results []Result  `json:"results"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is the error body AcoustID returns with status "error".
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Result is one fingerprint match with its confidence score.
type Result struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []Recording `json:"recordings"`
}

// Recording is a MusicBrainz recording linked to a fingerprint.
type Recording struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Duration      float64        `json:"duration,omitempty"`
	Artists       []Artist       `json:"artists"`
	ReleaseGroups []ReleaseGroup `json:"releasegroups"`
}

// Artist is a credited artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReleaseGroup is an album the recording appears on.
type ReleaseGroup struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
}

// Match is the best accepted fingerprint match.
type Match struct {
	AcoustID      string   `json:"acoustId"`
	RecordingID   string   `json:"recordingId"`
	Title         string   `json:"title"`
	Artists       []string `json:"artists"`
	Albums        []string `json:"albums"`
	ReleaseGroups []string `json:"releaseGroups"`
	Score         float64  `json:"score"`
}
