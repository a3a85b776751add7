package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidURL     = errors.New("invalid artwork URL")
	ErrDownloadFailed = errors.New("artwork download failed")
)

// ArtworkConfig holds configuration for the thumbnail cache.
type ArtworkConfig struct {
	// BaseDir is the base directory for storing thumbnails.
	BaseDir string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration
}

// DefaultArtworkConfig returns default artwork configuration.
func DefaultArtworkConfig() ArtworkConfig {
	return ArtworkConfig{
		BaseDir: "data/artwork",
		Timeout: 30 * time.Second,
	}
}

// ImageCache downloads provider artwork into local storage so the library
// never hotlinks provider CDNs.
type ImageCache struct {
	config     ArtworkConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewImageCache creates a new ImageCache.
func NewImageCache(cfg ArtworkConfig, logger zerolog.Logger) *ImageCache {
	return &ImageCache{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "artwork").Logger(),
	}
}

// FetchAndCacheImage downloads url and stores it as the file's thumbnail.
// The destination is derived from fileID and category only, so repeating
// the call overwrites the same file. Returns the local path.
func (d *ImageCache) FetchAndCacheImage(ctx context.Context, url, fileID string, category Category) (string, error) {
	if url == "" || !(strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
		return "", ErrInvalidURL
	}

	ext := imageExtension(url)
	if ext == "" {
		ext = ".jpg"
	}

	// {baseDir}/{category}/{fileID}_thumb{ext}, e.g. data/artwork/video/abc123_thumb.jpg
	dir := filepath.Join(d.config.BaseDir, string(category))
	destPath := filepath.Join(dir, thumbnailName(fileID, ext))

	if err := os.MkdirAll(dir, 0755); err != nil {
		d.logger.Error().Err(err).Str("dir", dir).Msg("Failed to create artwork directory")
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn().Err(err).Str("url", url).Str("fileId", fileID).Msg("Artwork download failed")
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn().Int("status", resp.StatusCode).Str("url", url).Str("fileId", fileID).Msg("Artwork download failed")
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	// Write to a temp file first so a failed download never replaces a good thumbnail.
	tmp, err := os.CreateTemp(dir, thumbnailName(fileID, "")+"-*.part")
	if err != nil {
		d.logger.Error().Err(err).Str("dir", dir).Msg("Failed to create artwork file")
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		d.logger.Error().Err(err).Str("path", tmpPath).Msg("Failed to write artwork file")
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	d.removeStale(fileID, category, ext)
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move artwork into place: %w", err)
	}

	d.logger.Debug().
		Str("url", url).
		Str("path", destPath).
		Int64("bytes", written).
		Msg("Artwork cached")

	return destPath, nil
}

// GetThumbnailPath returns the local thumbnail path for a file if one exists.
func (d *ImageCache) GetThumbnailPath(fileID string, category Category) string {
	for _, ext := range imageExtensions {
		path := filepath.Join(d.config.BaseDir, string(category), thumbnailName(fileID, ext))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// removeStale deletes thumbnails of the same file stored under another
// extension, so a file never has two cached thumbnails.
func (d *ImageCache) removeStale(fileID string, category Category, keep string) {
	for _, ext := range imageExtensions {
		if ext == keep {
			continue
		}
		path := filepath.Join(d.config.BaseDir, string(category), thumbnailName(fileID, ext))
		if err := os.Remove(path); err == nil {
			d.logger.Debug().Str("path", path).Msg("Removed stale thumbnail")
		}
	}
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// thumbnailName escapes the file id so distinct ids never share a file and
// none can leave the category directory.
func thumbnailName(fileID, ext string) string {
	return url.PathEscape(fileID) + "_thumb" + ext
}

// imageExtension extracts a known image extension from a URL.
func imageExtension(url string) string {
	lastSlash := strings.LastIndex(url, "/")
	if lastSlash == -1 {
		return ""
	}

	filename := url[lastSlash+1:]

	// Remove query string if present
	if qmark := strings.Index(filename, "?"); qmark != -1 {
		filename = filename[:qmark]
	}

	if dot := strings.LastIndex(filename, "."); dot != -1 {
		ext := strings.ToLower(filename[dot:])
		for _, known := range imageExtensions {
			if ext == known {
				return ext
			}
		}
	}

	return ""
}
