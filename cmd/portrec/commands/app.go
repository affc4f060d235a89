package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/portrec/portrec/internal/backfill"
	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/internal/provider/alphavantage"
	"github.com/portrec/portrec/internal/provider/etfdb"
	"github.com/portrec/portrec/internal/provider/polygon"
	"github.com/portrec/portrec/internal/provider/yahoo"
	"github.com/portrec/portrec/internal/store"
	"github.com/portrec/portrec/pkg/config"
	"github.com/portrec/portrec/pkg/database"
	"github.com/portrec/portrec/pkg/httputil"
	"github.com/portrec/portrec/pkg/logger"
	"github.com/portrec/portrec/pkg/redis"
)

// app holds the shared dependencies every command wires up.
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	redis  *redis.Client

	securities *store.SecurityRepository
	holdings   *store.HoldingsRepository
	state      *store.BackfillStateRepository
	theses     *store.ThesisRepository
}

// initApp loads config, connects to storage, and builds repositories.
func initApp() (*app, error) {
	// 1. Load config
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Ensure schema
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	// 5. Connect to Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without shared rate limits")
			redisClient = nil
		}
	}

	// 6. Create repositories
	return &app{
		cfg:        cfg,
		logger:     log,
		db:         db,
		redis:      redisClient,
		securities: store.NewSecurityRepository(db.Pool, log),
		holdings:   store.NewHoldingsRepository(db.Pool, log),
		state:      store.NewBackfillStateRepository(db.Pool, log),
		theses:     store.NewThesisRepository(db.Pool, log),
	}, nil
}

// Close releases database and cache connections.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

// newAdapter builds the provider adapter for a source name, with a
// shared Redis rate limiter on its HTTP client when Redis is up.
func (a *app) newAdapter(source string) (provider.Adapter, error) {
	httpClient := httputil.New(a.cfg, a.logger)

	if a.redis != nil {
		limiter := redis.NewRateLimiter(a.redis, "portrec")
		switch source {
		case "yahoo":
			httpClient = httpClient.WithRateLimiter(limiter, redis.YahooRateLimit)
		case "alpha_vantage":
			httpClient = httpClient.WithRateLimiter(limiter, redis.AlphaVantageRateLimit)
		case "polygon":
			httpClient = httpClient.WithRateLimiter(limiter, redis.PolygonRateLimit)
		case "etfdb":
			httpClient = httpClient.WithRateLimiter(limiter, redis.ETFDBRateLimit)
		}
	}

	switch source {
	case "yahoo":
		return yahoo.NewClient(httpClient, a.logger, a.cfg.Yahoo.BaseURL), nil
	case "alpha_vantage":
		if a.cfg.AlphaVantage.APIKey == "" {
			return nil, fmt.Errorf("ALPHA_VANTAGE_API_KEY is not set")
		}
		return alphavantage.NewClient(httpClient, a.logger, a.cfg.AlphaVantage.BaseURL, a.cfg.AlphaVantage.APIKey), nil
	case "polygon":
		if a.cfg.Polygon.APIKey == "" {
			return nil, fmt.Errorf("POLYGON_API_KEY is not set")
		}
		return polygon.NewClient(httpClient, a.logger, a.cfg.Polygon.BaseURL, a.cfg.Polygon.APIKey), nil
	case "etfdb":
		return etfdb.NewClient(httpClient, a.logger, a.cfg.ETFDB.BaseURL, a.cfg.ETFDB.PageSize), nil
	default:
		return nil, fmt.Errorf("unknown source %q (yahoo, alpha_vantage, polygon, etfdb)", source)
	}
}

// newGate builds the call pacing gate for a source. Alpha Vantage is
// the only provider with a hard daily budget on the free tier.
func (a *app) newGate(source string) *backfill.Gate {
	timeout := a.cfg.Backfill.ClaimTimeout

	switch source {
	case "alpha_vantage":
		perMinute := a.cfg.AlphaVantage.PerMinute
		if perMinute < 1 {
			perMinute = 5
		}
		return backfill.NewGate(time.Minute/time.Duration(perMinute), a.cfg.AlphaVantage.DailyBudget, timeout)
	case "polygon":
		return backfill.NewGate(12*time.Second, 0, timeout)
	case "etfdb":
		return backfill.NewGate(time.Second, 0, timeout)
	default:
		return backfill.NewGate(a.cfg.Backfill.RequestDelay, 0, timeout)
	}
}

// newOrchestrator assembles the backfill pipeline for one source.
func (a *app) newOrchestrator(source string) (*backfill.Orchestrator, error) {
	adapter, err := a.newAdapter(source)
	if err != nil {
		return nil, err
	}

	return backfill.NewOrchestrator(
		adapter,
		a.securities,
		a.holdings,
		a.state,
		a.newGate(source),
		backfill.Config{
			Workers:      a.cfg.Backfill.Workers,
			MaxAttempts:  a.cfg.Backfill.MaxAttempts,
			StalenessTTL: a.cfg.Backfill.StalenessTTL,
		},
		a.logger,
	), nil
}
