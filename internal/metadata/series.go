package metadata

import (
	"regexp"
	"strconv"
)

var (
	seasonEpisodePattern = regexp.MustCompile(`(?i)\bs(\d{1,2})e(\d{1,2})(?:\D|$)`)
	crossEpisodePattern  = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2})\b`)
)

// SearchKind is one entry of the video provider order.
type SearchKind string

const (
	SearchTV       SearchKind = "tv"
	SearchMovie    SearchKind = "movie"
	SearchFreeText SearchKind = "freetext"
)

// DetectSeries looks for a season/episode marker in the filename.
// "S02E05" style markers win; "2x05" is only consulted when none is present.
func DetectSeries(filename string) SeriesHint {
	name := cleanSeparators(stripExtension(filename))

	m := seasonEpisodePattern.FindStringSubmatch(name)
	if m == nil {
		m = crossEpisodePattern.FindStringSubmatch(name)
	}
	if m == nil {
		return SeriesHint{}
	}

	season, err := strconv.Atoi(m[1])
	if err != nil {
		return SeriesHint{}
	}
	episode, err := strconv.Atoi(m[2])
	if err != nil {
		return SeriesHint{}
	}
	return SeriesHint{IsSeries: true, Season: intPtr(season), Episode: intPtr(episode)}
}

// ProviderOrder returns the video search order for this hint.
func (h SeriesHint) ProviderOrder() []SearchKind {
	if h.IsSeries {
		return []SearchKind{SearchTV, SearchMovie, SearchFreeText}
	}
	return []SearchKind{SearchMovie, SearchTV, SearchFreeText}
}
