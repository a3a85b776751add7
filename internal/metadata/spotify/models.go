package spotify

// SearchResponse is the response from /search?type=track.
type SearchResponse struct {
	Tracks struct {
		Items []Track `json:"items"`
		Total int     `json:"total"`
	} `json:"tracks"`
}

// Track is a Spotify track object.
type Track struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Popularity int            `json:"popularity"`
	Artists    []SimpleArtist `json:"artists"`
	Album      Album          `json:"album"`
}

// SimpleArtist is the artist stub embedded in tracks.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is the album a track belongs to.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	Images      []Image `json:"images"`
}

// Image is an artwork reference; Spotify orders images largest first.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is the full artist object from /artists/{id}.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Images []Image  `json:"images"`
}

// ErrorResponse is an error body from the Web API.
type ErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// NormalizedTrack is a track reduced to what the resolver consumes.
type NormalizedTrack struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	Artists   []string `json:"artists"`
	ArtistIDs []string `json:"artistIds"`
	Album     string   `json:"album,omitempty"`
	ImageURL  string   `json:"imageUrl,omitempty"`
}

// NormalizedArtist carries the genres and image used to enrich a track.
type NormalizedArtist struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Genres   []string `json:"genres,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}
