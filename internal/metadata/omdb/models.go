package omdb

// Response represents the OMDb API response.
type Response struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Genre    string `json:"Genre"`
	Plot     string `json:"Plot"`
	Poster   string `json:"Poster"`
	ImdbID   string `json:"imdbID"`
	Type     string `json:"Type"`
	Response string `json:"Response"`
	Error    string `json:"Error,omitempty"`
}

// NormalizedTitle is the single best title match returned by a title lookup.
type NormalizedTitle struct {
	ImdbID    string   `json:"imdbId"`
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	Type      string   `json:"type,omitempty"`
	PosterURL string   `json:"posterUrl,omitempty"`
	Plot      string   `json:"plot,omitempty"`
	Genres    []string `json:"genres,omitempty"`
}
