package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Artwork   ArtworkConfig   `mapstructure:"artwork"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
// TriggerRatePerMinute limits resolve triggers per client IP.
type ServerConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	TriggerRatePerMinute int    `mapstructure:"trigger_rate_per_minute"`
}

// DatabaseConfig holds database configuration.
// Driver is "sqlite" (Path is used) or "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetadataConfig groups the external catalog credentials.
// DevMode swaps TMDB and OMDb for canned in-memory catalogs.
type MetadataConfig struct {
	DevMode     bool              `mapstructure:"dev_mode"`
	TMDB        TMDBConfig        `mapstructure:"tmdb"`
	OMDB        OMDBConfig        `mapstructure:"omdb"`
	Spotify     SpotifyConfig     `mapstructure:"spotify"`
	MusicBrainz MusicBrainzConfig `mapstructure:"musicbrainz"`
	AcoustID    AcoustIDConfig    `mapstructure:"acoustid"`
	LLM         LLMConfig         `mapstructure:"llm"`
}

// TMDBConfig holds TMDB API configuration.
type TMDBConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	ImageBaseURL string `mapstructure:"image_base_url"`
	Timeout      int    `mapstructure:"timeout"`
}

// OMDBConfig holds OMDb API configuration.
type OMDBConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// SpotifyConfig holds Spotify Web API configuration.
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	Market       string `mapstructure:"market"`
	Timeout      int    `mapstructure:"timeout"`
}

// MusicBrainzConfig holds MusicBrainz and Cover Art Archive configuration.
type MusicBrainzConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	BaseURL         string  `mapstructure:"base_url"`
	CoverArtBaseURL string  `mapstructure:"cover_art_base_url"`
	UserAgent       string  `mapstructure:"user_agent"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	Timeout         int     `mapstructure:"timeout"`
}

// AcoustIDConfig holds AcoustID fingerprint lookup configuration.
type AcoustIDConfig struct {
	ClientKey string  `mapstructure:"client_key"`
	BaseURL   string  `mapstructure:"base_url"`
	MinScore  float64 `mapstructure:"min_score"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Timeout   int     `mapstructure:"timeout"`
}

// LLMConfig holds the chat-completion endpoint used for filename extraction.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"`
}

// ResolverConfig holds match acceptance tuning.
type ResolverConfig struct {
	TitleThreshold     float64 `mapstructure:"title_threshold"`
	ArtistThreshold    float64 `mapstructure:"artist_threshold"`
	LiveRule           bool    `mapstructure:"live_rule"`
	MusicSearchLimit   int     `mapstructure:"music_search_limit"`
	FranchiseRulesFile string  `mapstructure:"franchise_rules_file"`
	CacheTTLMinutes    int     `mapstructure:"cache_ttl_minutes"`
}

// ArtworkConfig holds thumbnail cache configuration.
type ArtworkConfig struct {
	Dir     string `mapstructure:"dir"`
	Timeout int    `mapstructure:"timeout"`
}

// WorkerConfig controls how resolver runs are executed out of band.
// Mode is "pool" (in-process) or "redis" (durable asynq queue).
type WorkerConfig struct {
	Mode              string `mapstructure:"mode"`
	Concurrency       int    `mapstructure:"concurrency"`
	QueueSize         int    `mapstructure:"queue_size"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds"`
	RedisAddr         string `mapstructure:"redis_addr"`
}

// SchedulerConfig controls the periodic re-resolution sweep.
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ReresolveCron  string `mapstructure:"reresolve_cron"`
	RetryAfterDays int    `mapstructure:"retry_after_days"`
	BatchSize      int    `mapstructure:"batch_size"`
}

// Default returns a Config with default values. It panics if the built-in
// defaults do not decode.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediashelf")
	}

	v.SetEnvPrefix("MEDIASHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Resolver.TitleThreshold <= 0 || c.Resolver.TitleThreshold > 1 {
		return fmt.Errorf("resolver.title_threshold must be in (0,1], got %v", c.Resolver.TitleThreshold)
	}
	if c.Resolver.ArtistThreshold <= 0 || c.Resolver.ArtistThreshold > 1 {
		return fmt.Errorf("resolver.artist_threshold must be in (0,1], got %v", c.Resolver.ArtistThreshold)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Worker.Mode {
	case "pool", "redis":
	default:
		return fmt.Errorf("unsupported worker mode %q", c.Worker.Mode)
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.trigger_rate_per_minute", 120)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/mediashelf.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("metadata.dev_mode", false)
	v.SetDefault("metadata.tmdb.api_key", EmbeddedTMDBKey)
	v.SetDefault("metadata.tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("metadata.tmdb.image_base_url", "https://image.tmdb.org/t/p")
	v.SetDefault("metadata.tmdb.timeout", 10)

	v.SetDefault("metadata.omdb.api_key", EmbeddedOMDBKey)
	v.SetDefault("metadata.omdb.base_url", "https://www.omdbapi.com/")
	v.SetDefault("metadata.omdb.timeout", 10)

	v.SetDefault("metadata.spotify.client_id", "")
	v.SetDefault("metadata.spotify.client_secret", "")
	v.SetDefault("metadata.spotify.base_url", "https://api.spotify.com/v1")
	v.SetDefault("metadata.spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("metadata.spotify.market", "US")
	v.SetDefault("metadata.spotify.timeout", 10)

	v.SetDefault("metadata.musicbrainz.enabled", true)
	v.SetDefault("metadata.musicbrainz.base_url", "https://musicbrainz.org/ws/2")
	v.SetDefault("metadata.musicbrainz.cover_art_base_url", "https://coverartarchive.org")
	v.SetDefault("metadata.musicbrainz.user_agent", "mediashelf/1.0 (https://github.com/mediashelf/mediashelf)")
	v.SetDefault("metadata.musicbrainz.rate_limit", 1.0)
	v.SetDefault("metadata.musicbrainz.timeout", 15)

	v.SetDefault("metadata.acoustid.client_key", EmbeddedAcoustIDKey)
	v.SetDefault("metadata.acoustid.base_url", "https://api.acoustid.org/v2/lookup")
	v.SetDefault("metadata.acoustid.min_score", 0.8)
	v.SetDefault("metadata.acoustid.rate_limit", 3.0)
	v.SetDefault("metadata.acoustid.timeout", 10)

	v.SetDefault("metadata.llm.api_key", "")
	v.SetDefault("metadata.llm.base_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("metadata.llm.model", "google/gemini-2.0-flash-001")
	v.SetDefault("metadata.llm.timeout", 20)

	v.SetDefault("resolver.title_threshold", 0.75)
	v.SetDefault("resolver.artist_threshold", 0.8)
	v.SetDefault("resolver.live_rule", true)
	v.SetDefault("resolver.music_search_limit", 5)
	v.SetDefault("resolver.franchise_rules_file", "")
	v.SetDefault("resolver.cache_ttl_minutes", 15)

	v.SetDefault("artwork.dir", "./data/artwork")
	v.SetDefault("artwork.timeout", 30)

	v.SetDefault("worker.mode", "pool")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("worker.job_timeout_seconds", 300)
	v.SetDefault("worker.redis_addr", "localhost:6379")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reresolve_cron", "30 3 * * *")
	v.SetDefault("scheduler.retry_after_days", 7)
	v.SetDefault("scheduler.batch_size", 50)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
