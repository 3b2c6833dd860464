package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/actions"
	"github.com/sentry-moderation/sentry/moderation/analysis"
	"github.com/sentry-moderation/sentry/moderation/cachestore"
	"github.com/sentry-moderation/sentry/moderation/countstore"
	"github.com/sentry-moderation/sentry/moderation/engine"
	"github.com/sentry-moderation/sentry/moderation/fastpass"
	"github.com/sentry-moderation/sentry/moderation/inference"
	"github.com/sentry-moderation/sentry/moderation/policy"
	"github.com/sentry-moderation/sentry/moderation/ratelimit"
	"github.com/sentry-moderation/sentry/moderation/sanitizer"
	"github.com/sentry-moderation/sentry/moderation/validator"
	"github.com/sentry-moderation/sentry/moderation/violations"
)

type Server struct {
	logger   *slog.Logger
	pipeline *engine.Pipeline
	limiter  *ratelimit.Limiter
	rdb      *redis.Client
}

type Config struct {
	Logger             *slog.Logger
	DatabaseURL        string
	MaxDBConnections   int
	RedisURL           string
	PolicyFileJSON     string
	InferenceHost      string
	InferenceAPIKey    string
	InferenceModel     string
	InferenceRateLimit int
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
	}

	var policies policy.Provider
	var sink violations.Sink = violations.NoopSink{}
	if config.PolicyFileJSON != "" {
		pack, err := policy.LoadPackFileJSON(config.PolicyFileJSON)
		if err != nil {
			return nil, fmt.Errorf("loading policy pack file: %v", err)
		}
		policies = policy.NewStaticProvider(pack)
		logger.Info("loaded policy pack from JSON", "path", config.PolicyFileJSON, "pack", pack.Name)
	} else {
		db, err := policy.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, err
		}
		if err := policy.MigrateModels(db); err != nil {
			return nil, fmt.Errorf("migrating policy models: %v", err)
		}
		if err := violations.MigrateModels(db); err != nil {
			return nil, fmt.Errorf("migrating violation models: %v", err)
		}
		policies = policy.NewGormProvider(db)
		sink = violations.NewGormSink(db, logger)
	}

	provider := inference.NewHTTPClient(config.InferenceHost, config.InferenceAPIKey, config.InferenceRateLimit)

	analysisCfg := analysis.DefaultConfig()
	analysisCfg.Model = config.InferenceModel

	limiter := ratelimit.NewLimiter(logger, counters, sink, ratelimit.DefaultConfig())
	pipeline := engine.NewPipeline(engine.Deps{
		Logger:      logger,
		RateLimiter: limiter,
		Validator:   validator.New(logger, counters, validator.DefaultConfig()),
		Sanitizer:   sanitizer.New(logger, sanitizer.DefaultConfig()),
		FastPass:    fastpass.NewFilter(logger, fastpass.DefaultConfig()),
		Analyzer:    analysis.NewAnalyzer(logger, provider, cache, analysisCfg),
		Executor:    actions.NewExecutor(logger, actions.NewLogPlatform(logger), actions.DefaultConfig()),
		Policies:    policies,
		Inference:   provider,
		Model:       config.InferenceModel,
	})

	return &Server{
		logger:   logger,
		pipeline: pipeline,
		limiter:  limiter,
		rdb:      rdb,
	}, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run initializes the pipeline, starts background sweepers, and serves the
// moderation API until the context is cancelled.
func (s *Server) Run(ctx context.Context, bind string) error {
	if err := s.pipeline.Initialize(ctx); err != nil {
		return err
	}

	go func() {
		if err := s.limiter.RunSweeper(ctx, 5*time.Minute); err != nil {
			s.logger.Error("rate limit sweeper stopped", "err", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /moderate", s.handleModerate)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /reload", s.handleReload)

	srv := &http.Server{
		Addr:        bind,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("moderation API listening", "bind", bind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type moderateResponse struct {
	Action        moderation.Action        `json:"action"`
	DetectionType moderation.DetectionType `json:"detection_type,omitempty"`
	RuleTriggered *string                  `json:"rule_triggered,omitempty"`
	Confidence    map[string]float64       `json:"confidence,omitempty"`
	Reasoning     string                   `json:"reasoning,omitempty"`
	Success       bool                     `json:"success"`
	Error         string                   `json:"error,omitempty"`
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	var msg moderation.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, fmt.Sprintf("invalid message: %v", err), http.StatusBadRequest)
		return
	}
	if msg.ID == "" || msg.AuthorID == "" || msg.ChannelID == "" {
		http.Error(w, "id, author_id, and channel_id are required", http.StatusBadRequest)
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	dec := s.pipeline.Moderate(r.Context(), &msg)
	if dec == nil {
		// only the uninitialized pipeline returns nil
		http.Error(w, "pipeline not initialized", http.StatusServiceUnavailable)
		return
	}
	resp := moderateResponse{
		Action:        dec.Action,
		DetectionType: dec.DetectionType,
		RuleTriggered: dec.RuleTriggered,
		Confidence:    dec.Confidence,
		Reasoning:     dec.Reasoning,
		Success:       dec.Success,
		Error:         dec.ErrString(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("writing moderation response", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.pipeline.GetHealthStatus()
	w.Header().Set("Content-Type", "application/json")
	if !st.Initialized {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Error("writing health response", "err", err)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Reload(r.Context()); err != nil {
		s.logger.Error("policy reload failed", "err", err)
		http.Error(w, fmt.Sprintf("reload failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
