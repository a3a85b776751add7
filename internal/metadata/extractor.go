package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const maxExtractedLength = 200

// ExtractedTitle is the model's guess at what a filename names.
type ExtractedTitle struct {
	Artist string
	Title  string
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor turns an opaque filename into a clean title with one model call.
type Extractor struct {
	gen    Generator
	logger zerolog.Logger
}

// NewExtractor creates an extractor over the given generator.
func NewExtractor(gen Generator, logger zerolog.Logger) *Extractor {
	return &Extractor{gen: gen, logger: logger.With().Str("component", "extractor").Logger()}
}

func extractionPrompt(filename string, category Category) string {
	var b strings.Builder
	b.WriteString("You identify media from messy filenames.\n")
	if category == CategoryMusic {
		b.WriteString("The file is a song. Reply with exactly one line in the form \"Artist - Title\", ")
		b.WriteString("or just \"Title\" if the artist cannot be determined.\n")
	} else {
		b.WriteString("The file is a movie or TV episode. Reply with exactly one line containing only the ")
		b.WriteString("movie or show title, without year, season, episode or release details.\n")
	}
	b.WriteString("No explanations, no quotes, no formatting.\n")
	b.WriteString("Filename: ")
	b.WriteString(filename)
	return b.String()
}

// Extract asks the model for a title. Any reply that is not a single short
// line of the requested shape is ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, filename string, category Category) (ExtractedTitle, error) {
	raw, err := e.gen.Generate(ctx, extractionPrompt(filename, category))
	if err != nil {
		return ExtractedTitle{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	line, ok := cleanCompletion(raw)
	if !ok {
		e.logger.Debug().Str("filename", filename).Str("reply", truncate(raw, 80)).Msg("Rejected model reply")
		return ExtractedTitle{}, ErrExtractionFailed
	}

	if category == CategoryMusic {
		if artist, title, ok := ParseEmbeddedTitle(line); ok {
			return ExtractedTitle{Artist: artist, Title: title}, nil
		}
	}
	return ExtractedTitle{Title: line}, nil
}

// cleanCompletion trims code fences, surrounding quotes and whitespace and
// enforces the single-line contract.
func cleanCompletion(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], " ") {
			// drop a language tag such as ```text
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”")
	s = strings.TrimSpace(s)

	if s == "" || strings.ContainsAny(s, "\r\n") || len([]rune(s)) > maxExtractedLength {
		return "", false
	}
	switch strings.ToLower(s) {
	case "unknown", "n/a", "none", "null", "-":
		return "", false
	}
	return s, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
