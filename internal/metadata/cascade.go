package metadata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Providers is the set of catalogs the resolver may consult. Nil entries are
// skipped, so a deployment without credentials for a catalog still resolves
// through the others.
type Providers struct {
	Fingerprint FingerprintProvider
	Music       MusicSearchProvider
	Community   CommunityMusicProvider
	Movies      MovieProvider
	TV          TVProvider
	FreeText    FreeTextProvider
	Extractor   TitleExtractor
}

// ResolverConfig tunes acceptance.
type ResolverConfig struct {
	Thresholds          Thresholds
	LiveRule            bool
	FingerprintMinScore float64
	FranchiseRules      []FranchiseRule
}

// Resolver runs the identification cascade for one request at a time. It
// holds no per-request state and is safe for concurrent use.
type Resolver struct {
	providers Providers
	verdict   *VerdictEngine
	minScore  float64
	franchise []FranchiseRule
	logger    zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(p Providers, cfg ResolverConfig, logger zerolog.Logger) *Resolver {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.FingerprintMinScore <= 0 {
		cfg.FingerprintMinScore = 0.8
	}
	return &Resolver{
		providers: p,
		verdict:   NewVerdictEngine(cfg.Thresholds, cfg.LiveRule),
		minScore:  cfg.FingerprintMinScore,
		franchise: cfg.FranchiseRules,
		logger:    logger.With().Str("component", "resolver").Logger(),
	}
}

// Verdicts exposes the verdict engine, mainly for status reporting.
func (r *Resolver) Verdicts() *VerdictEngine {
	return r.verdict
}

// run carries the bookkeeping of one Resolve call.
type run struct {
	req      ResolveRequest
	tries    int
	aiUsed   bool
	stage    Stage
	logger   zerolog.Logger
	started  time.Time
	rejected int
}

func (rn *run) reject(provider, variant string, c Candidate, reason string) {
	rn.rejected++
	rn.logger.Debug().
		Str("provider", provider).
		Str("variant", variant).
		Str("candidate", c.Title).
		Str("reason", reason).
		Msg("Candidate rejected")
}

// Resolve walks the cascade: fingerprint, structured catalogs, community
// database, then one AI-assisted retry. The first accepted candidate wins.
// A Resolution without a candidate is the normal exhausted outcome.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) Resolution {
	rn := &run{
		req:     req,
		logger:  r.logger.With().Str("fileId", req.FileID).Logger(),
		started: time.Now(),
	}

	if res, ok := r.tryFingerprint(ctx, rn); ok {
		return res
	}

	q := BuildQuery(req)
	rn.logger.Debug().
		Str("title", q.Title).
		Str("artist", q.Artist).
		Int("variants", len(q.TitleVariants)).
		Bool("series", q.Series.IsSeries).
		Msg("Query built")

	if res, ok := r.deterministic(ctx, rn, q); ok {
		return res
	}

	if r.providers.Extractor != nil && ctx.Err() == nil {
		rn.stage = StageAIAssist
		rn.tries++
		extracted, err := r.providers.Extractor.Extract(ctx, req.Filename, req.Category)
		if err != nil {
			rn.logger.Warn().Err(err).Msg("AI-assisted extraction failed")
		} else {
			rn.aiUsed = true
			aq := queryFromExtraction(q, extracted)
			rn.logger.Debug().Str("title", aq.Title).Str("artist", aq.Artist).Msg("Retrying with extracted title")
			if res, ok := r.deterministic(ctx, rn, aq); ok {
				return res
			}
		}
	}

	rn.logger.Debug().
		Int("tries", rn.tries).
		Int("rejected", rn.rejected).
		Str("lastStage", string(rn.stage)).
		Dur("duration", time.Since(rn.started)).
		Msg("Cascade exhausted")
	return Resolution{Attempts: rn.tries, Provenance: Provenance{AIAssisted: rn.aiUsed}}
}

func (r *Resolver) tryFingerprint(ctx context.Context, rn *run) (Resolution, bool) {
	fp := rn.req.Fingerprint
	if fp == nil || len(fp.Data) == 0 || r.providers.Fingerprint == nil {
		return Resolution{}, false
	}

	rn.stage = StageFingerprint
	rn.tries++
	c, err := r.providers.Fingerprint.LookupByFingerprint(ctx, fp.Data, fp.DurationSeconds)
	if err != nil {
		logProviderFailure(rn.logger, "fingerprint", err)
		return Resolution{}, false
	}
	if c == nil {
		return Resolution{}, false
	}
	if c.Score == nil || *c.Score < r.minScore {
		rn.reject(c.ProviderID, "", *c, "fingerprint score below minimum")
		return Resolution{}, false
	}

	accepted := *c
	return Resolution{
		Candidate:  &accepted,
		Provenance: Provenance{Provider: c.ProviderID, Stage: StageFingerprint},
		Attempts:   rn.tries,
	}, true
}

func (r *Resolver) deterministic(ctx context.Context, rn *run, q Query) (Resolution, bool) {
	if q.Category == CategoryMusic {
		return r.resolveMusic(ctx, rn, q)
	}
	return r.resolveVideo(ctx, rn, q)
}

// accept finalizes a winning candidate: enrichment through the provider
// that produced it, then provenance.
func (r *Resolver) accept(ctx context.Context, rn *run, source any, stage Stage, q Query, c Candidate, idx int, variant string) (Resolution, bool) {
	if e, ok := source.(Enricher); ok {
		e.Enrich(ctx, &c, q.Series)
	}
	if rn.aiUsed {
		stage = StageAIAssist
	}
	rn.logger.Debug().
		Str("provider", c.ProviderID).
		Str("variant", variant).
		Int("variantIndex", idx).
		Str("candidate", c.Title).
		Msg("Candidate accepted")
	return Resolution{
		Candidate: &c,
		Provenance: Provenance{
			Provider:     c.ProviderID,
			Stage:        stage,
			VariantIndex: idx,
			Variant:      variant,
			AIAssisted:   rn.aiUsed,
		},
		Attempts: rn.tries,
	}, true
}

func (r *Resolver) resolveVideo(ctx context.Context, rn *run, q Query) (Resolution, bool) {
	rn.stage = StageStructured
	order := q.Series.ProviderOrder()
	rule := matchFranchise(r.franchise, q.Title, q.Year)
	if rule != nil {
		rn.logger.Debug().Str("rule", rule.Name).Msg("Franchise override applies")
		if len(rule.PreferredProviderOrder) > 0 {
			order = rule.PreferredProviderOrder
		}
	}

	for _, kind := range order {
		for i, variant := range q.TitleVariants {
			if ctx.Err() != nil {
				return Resolution{}, false
			}
			mq := MatchQuery{Title: variant}

			var source any
			var candidates []Candidate
			switch kind {
			case SearchTV:
				if r.providers.TV == nil {
					break
				}
				source = r.providers.TV
				rn.tries++
				res, err := r.providers.TV.SearchSeries(ctx, variant, q.Series)
				if err != nil {
					logProviderFailure(rn.logger, string(SearchTV), err)
				}
				candidates = res
				if rule != nil {
					candidates = rule.preferFranchise(candidates)
				}
			case SearchMovie:
				if r.providers.Movies == nil {
					break
				}
				source = r.providers.Movies
				rn.tries++
				res, err := r.providers.Movies.SearchMovies(ctx, variant, q.Year)
				if err != nil {
					logProviderFailure(rn.logger, string(SearchMovie), err)
				}
				candidates = res
			case SearchFreeText:
				if r.providers.FreeText == nil {
					break
				}
				source = r.providers.FreeText
				rn.tries++
				c, err := r.providers.FreeText.SearchTitle(ctx, variant)
				if err != nil {
					logProviderFailure(rn.logger, string(SearchFreeText), err)
				}
				if c != nil {
					candidates = []Candidate{*c}
				}
			}
			if source == nil {
				break
			}

			for _, c := range candidates {
				v := r.verdict.Judge(mq, c)
				if v.Accept {
					return r.accept(ctx, rn, source, StageStructured, q, c, i, variant)
				}
				rn.reject(c.ProviderID, variant, c, v.Reason)
			}
		}
	}
	return Resolution{}, false
}

type musicSearch func(ctx context.Context, title, artist string) ([]Candidate, error)

func (r *Resolver) resolveMusic(ctx context.Context, rn *run, q Query) (Resolution, bool) {
	if r.providers.Music != nil {
		rn.stage = StageStructured
		if res, ok := r.searchMusic(ctx, rn, q, r.providers.Music, r.providers.Music.SearchTracks, StageStructured); ok {
			return res, true
		}
	}
	if r.providers.Community != nil {
		rn.stage = StageCommunityDB
		if res, ok := r.searchMusic(ctx, rn, q, r.providers.Community, r.providers.Community.SearchRecordings, StageCommunityDB); ok {
			return res, true
		}
	}
	return Resolution{}, false
}

// searchMusic tries each title variant constrained by every artist variant,
// then title-only. Title-only results are still judged against the known
// artist so a same-named song by someone else is not accepted.
func (r *Resolver) searchMusic(ctx context.Context, rn *run, q Query, source any, search musicSearch, stage Stage) (Resolution, bool) {
	for i, variant := range q.TitleVariants {
		scopes := append(append([]string(nil), q.ArtistVariants...), "")
		for _, artist := range scopes {
			if ctx.Err() != nil {
				return Resolution{}, false
			}
			rn.tries++
			candidates, err := search(ctx, variant, artist)
			if err != nil {
				logProviderFailure(rn.logger, string(stage), err)
				continue
			}

			mq := MatchQuery{Title: variant, Artist: artist, Live: q.Live}
			if artist == "" {
				mq.Artist = q.Artist
			}
			for _, c := range candidates {
				v := r.verdict.Judge(mq, c)
				if v.Accept {
					return r.accept(ctx, rn, source, stage, q, c, i, variant)
				}
				rn.reject(c.ProviderID, variant, c, v.Reason)
			}
		}
	}
	return Resolution{}, false
}

// queryFromExtraction rebuilds the query around a model-extracted title,
// keeping what the filename already told us (series hint, year, artist).
func queryFromExtraction(orig Query, ex ExtractedTitle) Query {
	q := Query{
		Category: orig.Category,
		Year:     orig.Year,
		Series:   orig.Series,
		Live:     orig.Live || isLiveTitle(ex.Title),
	}
	if orig.Category == CategoryMusic {
		q.Title, q.TitleVariants = CleanMusicTitle(ex.Title)
		artist := ex.Artist
		if artist == "" {
			artist = orig.Artist
		}
		q.Artist = CleanArtist(artist)
		q.ArtistVariants = artistVariants(artist)
		return q
	}
	q.Title, q.TitleVariants = CleanVideoTitle(ex.Title)
	return q
}
