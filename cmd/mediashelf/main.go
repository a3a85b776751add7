package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/api"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/database"
	"github.com/mediashelf/mediashelf/internal/enrichment"
	"github.com/mediashelf/mediashelf/internal/logger"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/metadata/acoustid"
	"github.com/mediashelf/mediashelf/internal/metadata/llm"
	"github.com/mediashelf/mediashelf/internal/metadata/mock"
	"github.com/mediashelf/mediashelf/internal/metadata/musicbrainz"
	"github.com/mediashelf/mediashelf/internal/metadata/omdb"
	"github.com/mediashelf/mediashelf/internal/metadata/spotify"
	"github.com/mediashelf/mediashelf/internal/metadata/tmdb"
	"github.com/mediashelf/mediashelf/internal/scheduler"
	"github.com/mediashelf/mediashelf/internal/scheduler/tasks"
	"github.com/mediashelf/mediashelf/internal/startup"
)

const outcomeBufferSize = 500

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("database", cfg.Database.Driver).
		Str("workerMode", cfg.Worker.Mode).
		Bool("devMode", cfg.Metadata.DevMode).
		Msg("starting mediashelf")

	ctx := context.Background()
	retryCfg := startup.DefaultRetryConfig()

	var db *database.DB
	err = startup.WithRetry(ctx, "database connect", retryCfg, func(context.Context) error {
		var openErr error
		db, openErr = database.Open(cfg.Database)
		return openErr
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Str("driver", db.Driver()).Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	store := database.NewStore(db)

	var redisClient *redis.Client
	if cfg.Worker.Mode == "redis" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Worker.RedisAddr})
		defer redisClient.Close()
		err := startup.WithRetry(ctx, "redis ping", retryCfg, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Worker.RedisAddr).Msg("failed to reach redis")
		}
	}

	providers, configured, closeCache := buildProviders(cfg, redisClient, log.Logger)
	defer closeCache()

	resolverCfg, err := resolverConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Resolver.FranchiseRulesFile).Msg("failed to load franchise rules")
	}
	log.Info().Int("rules", len(resolverCfg.FranchiseRules)).Msg("loaded franchise rules")
	resolver := metadata.NewResolver(providers, resolverCfg, log.Logger)

	images := metadata.NewImageCache(metadata.ArtworkConfig{
		BaseDir: cfg.Artwork.Dir,
		Timeout: time.Duration(cfg.Artwork.Timeout) * time.Second,
	}, log.Logger)
	persister := metadata.NewPersister(store, images, log.Logger)

	jobTimeout := time.Duration(cfg.Worker.JobTimeoutSeconds) * time.Second
	outcomes := logger.NewRingBuffer[enrichment.OutcomeRecord](outcomeBufferSize)
	job := enrichment.NewJob(resolver, persister, outcomes, jobTimeout, log.Logger)

	dispatcher := newDispatcher(cfg, job, log.Logger)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		err = tasks.RegisterReresolveTask(sched, store, dispatcher, tasks.ReresolveConfig{
			Cron:       cfg.Scheduler.ReresolveCron,
			RetryAfter: time.Duration(cfg.Scheduler.RetryAfterDays) * 24 * time.Hour,
			BatchSize:  cfg.Scheduler.BatchSize,
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register re-resolution task")
		}
		sched.Start()
	}

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Store:      store,
		Dispatcher: dispatcher,
		Outcomes:   outcomes,
		Scheduler:  sched,
		Providers:  configured,
	}, log.Logger)

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown error")
		}
	}

	// Queued work gets one job timeout to finish before it is cancelled.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), jobTimeout+5*time.Second)
	defer drainCancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("dispatcher shutdown error")
	}

	log.Info().Msg("server stopped")
}

// resolverConfig builds acceptance tuning from config. Without a rules file
// the built-in franchise table applies.
func resolverConfig(cfg *config.Config) (metadata.ResolverConfig, error) {
	rules, err := metadata.LoadFranchiseRules(cfg.Resolver.FranchiseRulesFile)
	if err != nil {
		return metadata.ResolverConfig{}, err
	}
	return metadata.ResolverConfig{
		Thresholds: metadata.Thresholds{
			Title:  cfg.Resolver.TitleThreshold,
			Artist: cfg.Resolver.ArtistThreshold,
		},
		LiveRule:            cfg.Resolver.LiveRule,
		FingerprintMinScore: cfg.Metadata.AcoustID.MinScore,
		FranchiseRules:      rules,
	}, nil
}

// newDispatcher returns the in-process pool or the Redis-backed queue.
func newDispatcher(cfg *config.Config, job *enrichment.Job, log zerolog.Logger) enrichment.Dispatcher {
	if cfg.Worker.Mode == "redis" {
		q := enrichment.NewQueue(job, enrichment.QueueConfig{
			RedisAddr:   cfg.Worker.RedisAddr,
			Concurrency: cfg.Worker.Concurrency,
		}, log)
		if err := q.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start enrichment queue")
		}
		return q
	}

	return enrichment.NewPool(job, enrichment.PoolConfig{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
	}, log)
}

// buildProviders creates a provider for every configured catalog. Catalogs
// without credentials are left nil and skipped by the resolver. The returned
// map reports which catalogs are active.
func buildProviders(cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) (metadata.Providers, map[string]bool, func()) {
	var (
		p          metadata.Providers
		movies     metadata.MovieProvider
		tv         metadata.TVProvider
		configured = make(map[string]bool)
	)

	if cfg.Metadata.DevMode {
		log.Warn().Msg("developer mode: using canned TMDB and OMDb catalogs")
		tmdbClient := mock.NewTMDBClient()
		movies = metadata.NewTMDBMovieProvider(tmdbClient, log)
		tv = metadata.NewTMDBTVProvider(tmdbClient, log)
		p.FreeText = metadata.NewOMDBProvider(mock.NewOMDBClient(), log)
	} else {
		if tmdbClient := tmdb.NewClient(cfg.Metadata.TMDB, log); tmdbClient.IsConfigured() {
			movies = metadata.NewTMDBMovieProvider(tmdbClient, log)
			tv = metadata.NewTMDBTVProvider(tmdbClient, log)
		}
		if omdbClient := omdb.NewClient(cfg.Metadata.OMDB, log); omdbClient.IsConfigured() {
			p.FreeText = metadata.NewOMDBProvider(omdbClient, log)
		}
	}
	configured[metadata.ProviderTMDBMovie] = movies != nil
	configured[metadata.ProviderTMDBTV] = tv != nil
	configured[metadata.ProviderOMDB] = p.FreeText != nil

	ttl := time.Duration(cfg.Resolver.CacheTTLMinutes) * time.Minute
	closeCache := func() {}
	var cache metadata.ResultCache
	if redisClient != nil {
		cache = metadata.NewRedisCache(redisClient, ttl, log)
	} else {
		memory := metadata.NewCache(metadata.CacheConfig{TTL: ttl})
		cache = memory
		closeCache = memory.Close
	}
	cached := metadata.NewCachingMovieTV(movies, tv, cache)
	p.Movies = cached.Movies()
	p.TV = cached.TV()

	limit := cfg.Resolver.MusicSearchLimit
	if client := spotify.NewClient(cfg.Metadata.Spotify, log); client.IsConfigured() {
		p.Music = metadata.NewSpotifyProvider(client, limit, log)
	}
	if client := musicbrainz.NewClient(cfg.Metadata.MusicBrainz, log); client.IsConfigured() {
		p.Community = metadata.NewMusicBrainzProvider(client, limit, log)
	}
	if client := acoustid.NewClient(cfg.Metadata.AcoustID, log); client.IsConfigured() {
		p.Fingerprint = metadata.NewAcoustIDProvider(client, log)
	}
	if client := llm.NewClient(cfg.Metadata.LLM, log); client.IsConfigured() {
		p.Extractor = metadata.NewExtractor(client, log)
	}
	configured[metadata.ProviderSpotify] = p.Music != nil
	configured[metadata.ProviderMusicBrainz] = p.Community != nil
	configured[metadata.ProviderAcoustID] = p.Fingerprint != nil
	configured["llm"] = p.Extractor != nil

	for name, ok := range configured {
		if !ok {
			log.Warn().Str("provider", name).Msg("provider not configured, skipping")
		}
	}

	return p, configured, closeCache
}
