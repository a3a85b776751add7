package metadata

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	ReasonLiveMismatch   = "live version mismatch"
	ReasonTitleTooFar    = "title below threshold"
	ReasonArtistTooFar   = "artist below threshold"
	ReasonMissingTitle   = "candidate has no title"
	DefaultTitleMinimum  = 0.75
	DefaultArtistMinimum = 0.8
)

var liveMarker = regexp.MustCompile(`(?i)([\(\[]\s*live\b|-\s*live\b|\blive\s+(at|from|in|on|version|session|recording|acoustic)\b|\blive\s*$)`)

// Thresholds are the minimum similarities for acceptance.
type Thresholds struct {
	Title  float64
	Artist float64
}

// DefaultThresholds returns the stock title/artist thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Title: DefaultTitleMinimum, Artist: DefaultArtistMinimum}
}

// MatchQuery is what we believe the file is, compared against candidates.
type MatchQuery struct {
	Title  string
	Artist string
	Live   bool
}

// VerdictEngine decides whether a candidate is the same work as the query.
type VerdictEngine struct {
	Thresholds Thresholds
	LiveRule   bool

	// similarity is swappable in tests; nil means Similarity.
	similarity func(a, b string) float64
}

// NewVerdictEngine creates a verdict engine with the given thresholds.
func NewVerdictEngine(t Thresholds, liveRule bool) *VerdictEngine {
	return &VerdictEngine{Thresholds: t, LiveRule: liveRule}
}

func (v *VerdictEngine) score(a, b string) float64 {
	if v.similarity != nil {
		return v.similarity(a, b)
	}
	return Similarity(a, b)
}

// Judge compares the query with a candidate. Rejections carry the first
// failing rule as their reason; acceptances carry none.
func (v *VerdictEngine) Judge(q MatchQuery, c Candidate) Verdict {
	if strings.TrimSpace(c.Title) == "" {
		return Verdict{Reason: ReasonMissingTitle}
	}

	// A live recording only matches a live query, and a studio one only a studio query.
	if v.LiveRule && isLiveTitle(c.Title) != (q.Live || isLiveTitle(q.Title)) {
		return Verdict{Reason: ReasonLiveMismatch}
	}

	if v.score(q.Title, c.Title) < v.Thresholds.Title {
		return Verdict{Reason: ReasonTitleTooFar}
	}

	if strings.TrimSpace(q.Artist) != "" {
		best := 0.0
		for _, a := range c.Artists {
			if s := v.score(q.Artist, a); s > best {
				best = s
			}
		}
		if best < v.Thresholds.Artist {
			return Verdict{Reason: ReasonArtistTooFar}
		}
	}

	return Verdict{Accept: true}
}

func isLiveTitle(title string) bool {
	return liveMarker.MatchString(title)
}

// foldForMatch strips diacritics, case folds, and reduces punctuation to spaces.
func foldForMatch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ReplaceAll(stripped, "&", " and ")
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return collapseSpaces(b.String())
}

func tokenSetKey(s string) string {
	fields := strings.Fields(s)
	seen := make(map[string]bool, len(fields))
	uniq := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			uniq = append(uniq, f)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, " ")
}

// jaroWinkler evaluates both argument orders so the result never depends on
// which side is the query.
func jaroWinkler(a, b string) float64 {
	best := 0.0
	for _, pair := range [2][2]string{{a, b}, {b, a}} {
		sim, err := edlib.StringsSimilarity(pair[0], pair[1], edlib.JaroWinkler)
		if err == nil && float64(sim) > best {
			best = float64(sim)
		}
	}
	return best
}

// Similarity scores two names in [0,1] after folding. It takes the better of
// plain Jaro-Winkler and Jaro-Winkler over the sorted unique token sets, so
// word order differences ("Punk Daft") are not punished.
func Similarity(a, b string) float64 {
	fa, fb := foldForMatch(a), foldForMatch(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}
	score := jaroWinkler(fa, fb)
	if ta, tb := tokenSetKey(fa), tokenSetKey(fb); ta == tb {
		score = 1
	} else if s := jaroWinkler(ta, tb); s > score {
		score = s
	}
	if score > 1 {
		score = 1
	}
	return score
}
