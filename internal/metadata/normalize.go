package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// minMeaningfulLength is the shortest cleaned name worth sending to a catalog.
const minMeaningfulLength = 2

// minMusicVariantTokens stops music variants from shrinking into single
// generic words that match half a catalog.
const minMusicVariantTokens = 2

var mediaExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".m4v": true, ".avi": true, ".mov": true,
	".wmv": true, ".webm": true, ".mpg": true, ".mpeg": true, ".ts": true,
	".m2ts": true, ".flv": true, ".3gp": true, ".ogv": true,
	".mp3": true, ".flac": true, ".m4a": true, ".aac": true, ".ogg": true,
	".oga": true, ".opus": true, ".wav": true, ".wma": true, ".aiff": true,
	".aif": true, ".alac": true, ".ape": true, ".wv": true,
}

// videoStopWords is the closed set of technical tokens after which the rest
// of a release name is noise.
var videoStopWords = map[string]bool{
	// resolution
	"4k": true, "uhd": true, "hd": true, "fhd": true, "sd": true,
	// source / rip
	"bluray": true, "blu-ray": true, "bdrip": true, "brrip": true, "bdremux": true,
	"remux": true, "web-dl": true, "webdl": true, "webrip": true, "web": true,
	"hdtv": true, "pdtv": true, "sdtv": true, "dvdrip": true, "dvd": true,
	"dvdscr": true, "hdrip": true, "hdcam": true, "cam": true, "hdts": true,
	"telesync": true, "amzn": true, "nf": true, "dsnp": true, "hmax": true,
	"atvp": true, "hulu": true,
	// video codec / format
	"x264": true, "x265": true, "h264": true, "h265": true, "hevc": true,
	"avc": true, "xvid": true, "divx": true, "av1": true, "vp9": true,
	"10bit": true, "8bit": true, "hdr": true, "hdr10": true, "dv": true,
	"dovi": true, "sdr": true, "imax": true,
	// audio codec
	"aac": true, "ac3": true, "eac3": true, "dts": true, "dts-hd": true,
	"truehd": true, "atmos": true, "ddp": true, "dd": true, "ddp5": true,
	"dd5": true, "flac": true, "mp3": true, "opus": true,
	// language
	"multi": true, "dual": true, "vostfr": true, "truefrench": true,
	"french": true, "german": true, "ita": true, "eng": true, "spa": true,
	"subbed": true, "dubbed": true, "subs": true, "msubs": true,
	// release
	"proper": true, "repack": true, "internal": true, "limited": true,
	"extended": true, "unrated": true, "remastered": true, "uncut": true,
	"rerip": true, "readnfo": true,
}

var (
	resolutionToken   = regexp.MustCompile(`^\d{3,4}[pi]$`)
	episodeToken      = regexp.MustCompile(`^s\d{1,2}e\d{1,2}`)
	altEpisodeToken   = regexp.MustCompile(`^\d{1,2}x\d{2}$`)
	yearToken         = regexp.MustCompile(`^(19|20)\d{2}$`)
	squareBrackets    = regexp.MustCompile(`\[[^\]]*\]`)
	anyBrackets       = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	bracketedFeature  = regexp.MustCompile(`(?i)[\(\[]\s*(feat\.?|ft\.?|featuring)\s[^\)\]]*[\)\]]`)
	trailingFeature   = regexp.MustCompile(`(?i)\s+(feat\.?|ft\.?|featuring)\s.*$`)
	trailingOfficial  = regexp.MustCompile(`(?i)[\s\-–(\[]*\bofficial\b.*$`)
	artistNoise       = regexp.MustCompile(`(?i)(\s*-\s*topic|vevo|\s+official)\s*$`)
	quoteChars        = regexp.MustCompile(`["“”„«»]`)
	whitespace        = regexp.MustCompile(`\s+`)
	genericTrackTitle = regexp.MustCompile(`(?i)^(track|audio|untitled|unknown)\s*\d*$`)
	artistSplitter    = regexp.MustCompile(`(?i)\s*(?:&|,|\bx\b|\band\b|\bvs\.?\b|\bwith\b)\s*`)
)

// stripExtension removes directory components and a known media extension.
func stripExtension(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return trimMediaExtension(base)
}

// trimMediaExtension removes a known media extension but keeps slashes, so
// tag titles like "Face/Off" survive.
func trimMediaExtension(name string) string {
	name = strings.TrimSpace(name)
	if ext := filepath.Ext(name); mediaExtensions[strings.ToLower(ext)] {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// cleanSeparators turns dot/underscore separated release names into words.
func cleanSeparators(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// isPunctuationOnly reports tokens like "-" or "~" that carry no title content.
func isPunctuationOnly(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isVideoStopToken reports whether tok starts the technical tail of a release name.
// position is the token's index; bare years never stop the first token so titles
// such as "1917" survive.
func isVideoStopToken(tok string, position int) bool {
	t := strings.ToLower(strings.Trim(tok, "()[]{}"))
	if t == "" {
		return false
	}
	if videoStopWords[t] || resolutionToken.MatchString(t) || episodeToken.MatchString(t) || altEpisodeToken.MatchString(t) {
		return true
	}
	if position > 0 && yearToken.MatchString(t) {
		return true
	}
	// Release-group suffixes glued to a codec, e.g. "x264-GROUP".
	if strings.Contains(t, "-") {
		for _, part := range strings.Split(t, "-") {
			if videoStopWords[part] || resolutionToken.MatchString(part) {
				return true
			}
		}
	}
	return false
}

func tokenize(s string) []string {
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if isPunctuationOnly(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// progressiveVariants joins the first n..minTokens tokens, longest first.
func progressiveVariants(tokens []string, minTokens int) []string {
	if minTokens < 1 {
		minTokens = 1
	}
	if minTokens > len(tokens) {
		minTokens = len(tokens)
	}
	variants := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for n := len(tokens); n >= minTokens && n > 0; n-- {
		v := strings.Join(tokens[:n], " ")
		if seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}
	return variants
}

// CleanVideoTitle derives the base title and its progressively narrower
// search variants from a raw video filename or tag title.
func CleanVideoTitle(raw string) (string, []string) {
	name := trimMediaExtension(raw)
	name = squareBrackets.ReplaceAllString(name, " ")
	name = strings.NewReplacer("(", " ", ")", " ", "{", " ", "}", " ").Replace(name)
	cleaned := cleanSeparators(name)

	all := tokenize(cleaned)
	kept := all
	for i, tok := range all {
		if isVideoStopToken(tok, i) {
			kept = all[:i]
			break
		}
	}
	if len(kept) == 0 {
		kept = all
	}
	if len(kept) == 0 {
		fallback := collapseSpaces(name)
		return fallback, []string{fallback}
	}

	return strings.Join(kept, " "), progressiveVariants(kept, 1)
}

// stripMusicNoise removes feature credits, "Official ..." suffixes,
// bracketed annotations and quote characters from a track title.
func stripMusicNoise(title string) string {
	s := bracketedFeature.ReplaceAllString(title, " ")
	s = trailingFeature.ReplaceAllString(s, "")
	if loc := trailingOfficial.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	s = anyBrackets.ReplaceAllString(s, " ")
	s = quoteChars.ReplaceAllString(s, "")
	return collapseSpaces(s)
}

// CleanMusicTitle derives the feature-stripped base title and its variants.
// Music titles keep their dots ("Mr. Brightside") unless the whole name is
// dot or underscore separated.
func CleanMusicTitle(raw string) (string, []string) {
	name := trimMediaExtension(raw)
	if strings.Contains(name, "_") || (!strings.Contains(name, " ") && strings.Count(name, ".") > 1) {
		name = cleanSeparators(name)
	}
	name = collapseSpaces(name)

	base := stripMusicNoise(name)
	if base == "" {
		base = collapseSpaces(quoteChars.ReplaceAllString(name, ""))
	}
	if base == "" {
		return name, []string{name}
	}

	variants := progressiveVariants(tokenize(base), minMusicVariantTokens)
	if len(variants) == 0 {
		variants = []string{base}
	}
	return base, variants
}

// CleanArtist strips channel-style noise ("- Topic", "VEVO", "Official") and quotes.
func CleanArtist(raw string) string {
	s := quoteChars.ReplaceAllString(raw, "")
	s = trailingFeature.ReplaceAllString(s, "")
	for {
		next := collapseSpaces(artistNoise.ReplaceAllString(s, ""))
		if next == s || next == "" {
			break
		}
		s = next
	}
	return collapseSpaces(s)
}

// artistVariants returns the artist, the artist without a leading "The",
// and the first credited artist of a collaboration, deduplicated.
func artistVariants(artist string) []string {
	a := CleanArtist(artist)
	if a == "" {
		return nil
	}
	out := []string{a}
	if trimmed := strings.TrimSpace(strings.TrimPrefix(a, "The ")); trimmed != a && trimmed != "" {
		out = append(out, trimmed)
	}
	if parts := artistSplitter.Split(a, -1); len(parts) > 1 && strings.TrimSpace(parts[0]) != "" {
		out = append(out, strings.TrimSpace(parts[0]))
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ParseEmbeddedTitle splits "Artist - Title" or "Artist: Title".
func ParseEmbeddedTitle(title string) (artist, track string, ok bool) {
	t := strings.TrimSpace(title)
	for _, sep := range []string{" - ", " – ", " — ", ": "} {
		idx := strings.Index(t, sep)
		if idx <= 0 {
			continue
		}
		a := strings.TrimSpace(t[:idx])
		tr := strings.TrimSpace(t[idx+len(sep):])
		if a != "" && tr != "" {
			return a, tr, true
		}
	}
	return "", "", false
}

// isNonTrivialTag reports whether an embedded tag value should override
// filename-derived guesses.
func isNonTrivialTag(v string) bool {
	v = strings.TrimSpace(v)
	if len([]rune(v)) < minMeaningfulLength {
		return false
	}
	if genericTrackTitle.MatchString(v) {
		return false
	}
	return !looksLikeFilename(v)
}

func looksLikeFilename(v string) bool {
	if mediaExtensions[strings.ToLower(filepath.Ext(v))] {
		return true
	}
	if strings.Contains(v, " ") {
		return false
	}
	return strings.Contains(v, "_") || strings.Count(v, ".") >= 2
}

// Query is the normalized search input for one request.
type Query struct {
	Category       Category
	Title          string
	Artist         string
	Year           *int
	TitleVariants  []string
	ArtistVariants []string
	Series         SeriesHint
	// Live is set when the original title marks a live recording; the
	// marker itself is stripped from the variants.
	Live bool
}

// BuildQuery derives the search query from a request. Embedded tags win over
// filename guesses when they are non-trivial; an "Artist - Title" tag title
// only supplies the artist when no artist tag exists.
func BuildQuery(req ResolveRequest) Query {
	q := Query{Category: req.Category, Year: req.BasicYear}
	fileBase := stripExtension(req.Filename)

	switch req.Category {
	case CategoryMusic:
		tagArtist := ""
		if isNonTrivialTag(req.BasicArtist) {
			tagArtist = req.BasicArtist
		}

		var title, parsedArtist string
		source := fileBase
		if isNonTrivialTag(req.BasicTitle) {
			source = req.BasicTitle
		} else if strings.Contains(source, "_") {
			source = cleanSeparators(source)
		}
		if a, t, ok := ParseEmbeddedTitle(source); ok {
			parsedArtist, title = a, t
		} else {
			title = source
		}

		artist := tagArtist
		if artist == "" {
			artist = parsedArtist
		}

		q.Live = isLiveTitle(title)
		q.Title, q.TitleVariants = CleanMusicTitle(title)
		q.Artist = CleanArtist(artist)
		q.ArtistVariants = artistVariants(artist)

	default:
		source := fileBase
		if isNonTrivialTag(req.BasicTitle) {
			source = req.BasicTitle
		}
		q.Title, q.TitleVariants = CleanVideoTitle(source)
		q.Series = DetectSeries(req.Filename)
		if !q.Series.IsSeries && source != fileBase {
			q.Series = DetectSeries(source)
		}
		if q.Year == nil {
			q.Year = detectYear(fileBase)
		}
	}

	return q
}

// detectYear returns the first plausible release year that is not the
// leading token of the name.
func detectYear(name string) *int {
	tokens := tokenize(cleanSeparators(strings.NewReplacer("(", " ", ")", " ", "[", " ", "]", " ").Replace(name)))
	for i, tok := range tokens {
		if i == 0 || !yearToken.MatchString(tok) {
			continue
		}
		y := 0
		for _, r := range tok {
			y = y*10 + int(r-'0')
		}
		return intPtr(y)
	}
	return nil
}
