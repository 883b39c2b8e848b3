package briefing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/briefd/internal/cache"
	"github.com/fyrsmithlabs/briefd/internal/compress"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/logging"
)

// EmailFetcher fetches a user's recent email. Implementations absorb their
// own failures: a broken or unauthenticated provider yields a result with
// Connected=false (and AuthError for 401s), never an aborted fetch.
type EmailFetcher interface {
	FetchEmail(ctx context.Context, userID string) evidence.EmailResult
}

// CalendarFetcher fetches a user's upcoming calendar events.
type CalendarFetcher interface {
	FetchCalendar(ctx context.Context, userID string) evidence.CalendarResult
}

// CodeFetcher fetches a user's source-control activity.
type CodeFetcher interface {
	FetchCode(ctx context.Context, userID string) evidence.CodeResult
}

// Compressor is the compression stage consumed by the pipeline.
type Compressor interface {
	Compress(ctx context.Context, text string, aggressiveness float64) compress.Result
}

// ServiceConfig holds pipeline settings.
type ServiceConfig struct {
	Aggressiveness float64
	CacheTTL       time.Duration
	// RequestDeadline bounds one full pipeline run, covering provider
	// fetches, compression, and the model call.
	RequestDeadline time.Duration
}

// Service runs the briefing pipeline: parallel provider fetch, evidence
// normalization, compression, generation, and response caching.
type Service struct {
	email      EmailFetcher
	calendar   CalendarFetcher
	code       CodeFetcher
	compressor Compressor
	generator  *Generator
	respCache  *cache.Store[*Briefing]
	config     ServiceConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires the pipeline together.
func NewService(email EmailFetcher, calendar CalendarFetcher, code CodeFetcher,
	compressor Compressor, generator *Generator, cfg ServiceConfig, logger *zap.Logger) (*Service, error) {
	if email == nil || calendar == nil || code == nil {
		return nil, fmt.Errorf("all three provider fetchers are required")
	}
	if compressor == nil {
		return nil, fmt.Errorf("compressor is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Aggressiveness == 0 {
		cfg.Aggressiveness = 0.5
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.RequestDeadline == 0 {
		cfg.RequestDeadline = 30 * time.Second
	}

	return &Service{
		email:      email,
		calendar:   calendar,
		code:       code,
		compressor: compressor,
		generator:  generator,
		respCache:  cache.New[*Briefing](cfg.CacheTTL),
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// GetBriefing returns the briefing for userID. The result is always a
// schema-valid Briefing; failures along the way degrade rather than error.
// cacheHit reports whether it was served from the response cache.
//
// forceRefresh bypasses the cache read unconditionally but still writes
// through on success.
func (s *Service) GetBriefing(ctx context.Context, userID string, forceRefresh bool) (b *Briefing, cacheHit bool) {
	log := s.logger.With(logging.ContextFields(ctx)...)

	if !forceRefresh {
		if cached, ok := s.respCache.Get(userID); ok {
			log.Debug("serving cached briefing", zap.String("user_id", userID))
			return cached, true
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestDeadline)
	defer cancel()

	sources := s.fetchSources(ctx, userID)
	pack := evidence.BuildPack(sources)

	// Empty evidence: skip both external calls, nothing to brief on.
	if pack.Empty() {
		log.Info("no evidence collected, serving fallback briefing",
			zap.String("user_id", userID))
		return Fallback(s.now()), false
	}

	comp := s.compressor.Compress(ctx, pack.Text, s.config.Aggressiveness)

	briefing, ok := s.generator.Generate(ctx, pack, comp, sources.AuthDegraded())
	if ok {
		s.respCache.Put(userID, briefing)
	}

	log.Info("briefing generated",
		zap.String("user_id", userID),
		zap.Bool("fallback", !ok))
	return briefing, false
}

// fetchSources issues the three provider fetches concurrently. Each branch's
// failure is isolated: fetchers return degraded results instead of errors,
// so a broken provider never sinks its siblings.
func (s *Service) fetchSources(ctx context.Context, userID string) evidence.Sources {
	var sources evidence.Sources

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sources.Email = s.email.FetchEmail(ctx, userID)
		return nil
	})
	g.Go(func() error {
		sources.Calendar = s.calendar.FetchCalendar(ctx, userID)
		return nil
	})
	g.Go(func() error {
		sources.Code = s.code.FetchCode(ctx, userID)
		return nil
	})
	_ = g.Wait()

	return sources
}
