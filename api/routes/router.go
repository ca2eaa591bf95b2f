package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ptm-finance-backend/api/controllers"
	cashbalancecontrollers "github.com/angelmondragon/ptm-finance-backend/api/controllers/cashbalance"
	duescontrollers "github.com/angelmondragon/ptm-finance-backend/api/controllers/dues"
	"github.com/angelmondragon/ptm-finance-backend/api/middleware"
	"github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	"github.com/angelmondragon/ptm-finance-backend/internal/dues"
	"github.com/angelmondragon/ptm-finance-backend/internal/duesimport"
	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/ptm-finance-backend/pkg/redis"
	"github.com/angelmondragon/ptm-finance-backend/pkg/storage"
)

// RedisStore is the redis surface the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
	Ping(ctx context.Context) error
	AcquireImportLock(ctx context.Context, year int, ttl time.Duration) (bool, func(context.Context), error)
}

// Deps carries everything NewRouter wires. Redis, Storage and Metrics may
// be nil; the routes that need Storage are then not mounted.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       RedisStore
	Storage     *storage.Local
	Metrics     *metrics.Finance
	Gatherer    prometheus.Gatherer
	CashBalance cashbalance.Service
	Dues        dues.Service
	DuesQuery   dues.QueryService
	DuesImport  duesimport.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	var (
		redisStore   pkgredis.IdempotencyStore
		rateLimiter  pkgredis.RateLimiter
		importLocker duescontrollers.ImportLocker
		redisPinger  controllers.Pinger
	)
	if d.Redis != nil {
		redisStore, rateLimiter, importLocker, redisPinger = d.Redis, d.Redis, d.Redis, d.Redis
	}

	r.Get("/health", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
		"database": d.DB,
		"redis":    redisPinger,
	}))

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	policy := middleware.RateLimitPolicy{Window: cfg.RateLimit.Window, MaxRequests: cfg.RateLimit.MaxRequests}

	r.Route("/api/finance", func(r chi.Router) {
		r.Use(middleware.RateLimit(policy, rateLimiter, logg))
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisStore, cfg.Redis.IdempotencyTTL, cfg.Storage.ImportMaxBytes(), logg))

		r.Route("/cash-balance", func(r chi.Router) {
			r.Get("/", cashbalancecontrollers.Get(d.CashBalance, logg))
			r.Put("/", cashbalancecontrollers.Update(d.CashBalance, logg))
			r.Get("/history", cashbalancecontrollers.History(d.CashBalance, logg))
		})

		r.Route("/dues", func(r chi.Router) {
			r.Post("/", duescontrollers.UpdateStatus(d.Dues, logg))
			r.Get("/", duescontrollers.List(d.DuesQuery, logg))
			r.Get("/{id}", duescontrollers.Detail(d.DuesQuery, logg))
			if d.Storage != nil {
				r.Put("/{id}/proof", duescontrollers.UploadProof(d.Dues, d.Storage, cfg.Storage.ProofMaxBytes(), logg))
				r.Post("/import", duescontrollers.Import(d.DuesImport, d.Storage, importLocker, cfg.Storage.ImportMaxBytes(), logg))
			}
		})
	})

	if d.Storage != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(policy, rateLimiter, logg))
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Handle("/storage/*", d.Storage.ProofHandler())
		})
	}

	return r
}
