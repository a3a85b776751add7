package metadata

import (
	"testing"
)

func TestDetectSeries(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantSeries  bool
		wantSeason  int
		wantEpisode int
	}{
		{"scene release", "The.Show.S02E05.1080p.WEB-DL.x264-GROUP.mkv", true, 2, 5},
		{"lowercase marker", "the_show_s1e10.mp4", true, 1, 10},
		{"marker with episode title", "Breaking Bad - S05E14 - Ozymandias.mkv", true, 5, 14},
		{"cross notation", "Show.2x05.HDTV.avi", true, 2, 5},
		{"season-episode wins over cross", "Show.S03E07.1x02.mkv", true, 3, 7},
		{"movie", "Inception.2010.1080p.BluRay.mkv", false, 0, 0},
		{"resolution is not an episode", "Home.Video.1920x1080.mp4", false, 0, 0},
		{"codec is not an episode", "Movie.x264.mkv", false, 0, 0},
		{"empty", "", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := DetectSeries(tt.filename)
			if hint.IsSeries != tt.wantSeries {
				t.Fatalf("IsSeries = %v, want %v", hint.IsSeries, tt.wantSeries)
			}
			if !tt.wantSeries {
				if hint.Season != nil || hint.Episode != nil {
					t.Errorf("expected no season/episode, got %v/%v", hint.Season, hint.Episode)
				}
				return
			}
			if hint.Season == nil || *hint.Season != tt.wantSeason {
				t.Errorf("Season = %v, want %d", hint.Season, tt.wantSeason)
			}
			if hint.Episode == nil || *hint.Episode != tt.wantEpisode {
				t.Errorf("Episode = %v, want %d", hint.Episode, tt.wantEpisode)
			}
		})
	}
}

func TestSeriesHint_ProviderOrder(t *testing.T) {
	series := SeriesHint{IsSeries: true, Season: intPtr(1), Episode: intPtr(1)}.ProviderOrder()
	if series[0] != SearchTV || series[1] != SearchMovie || series[2] != SearchFreeText {
		t.Errorf("unexpected series order %v", series)
	}

	movie := SeriesHint{}.ProviderOrder()
	if movie[0] != SearchMovie || movie[1] != SearchTV || movie[2] != SearchFreeText {
		t.Errorf("unexpected movie order %v", movie)
	}
}
