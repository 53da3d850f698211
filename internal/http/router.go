// Package httpapi wires the Gin transport to the movie-info services,
// middleware and handlers.
//
// Middleware order:
//  1. OpenTelemetry tracing
//  2. RequestID, Logger, Recovery
//  3. Body size limit
//  4. Prometheus metrics
//  5. Idempotency validator (before the limiter so replays bypass it)
//  6. Rate limiter
//  7. CORS, security headers, gzip (never on /stream)
package httpapi

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-info/docs"
	"github.com/tbourn/go-movie-info/internal/config"
	"github.com/tbourn/go-movie-info/internal/domain"
	"github.com/tbourn/go-movie-info/internal/http/handlers"
	"github.com/tbourn/go-movie-info/internal/http/middleware"
	"github.com/tbourn/go-movie-info/internal/repo"
	"github.com/tbourn/go-movie-info/internal/services"
)

// maxBodyBytes caps request bodies (1 MiB).
const maxBodyBytes = 1 << 20

// streamPath is kept out of gzip so events reach the client per tick.
const streamPath = "/stream"

// movieInfoRepoShim adapts the repo free functions to services.MovieInfoRepo.
type movieInfoRepoShim struct{}

func (movieInfoRepoShim) Save(ctx context.Context, db *gorm.DB, m *domain.MovieInfo) (*domain.MovieInfo, error) {
	return repo.SaveMovieInfo(ctx, db, m)
}

func (movieInfoRepoShim) SaveAll(ctx context.Context, db *gorm.DB, ms []domain.MovieInfo) ([]domain.MovieInfo, error) {
	return repo.SaveMovieInfos(ctx, db, ms)
}

func (movieInfoRepoShim) FindAll(ctx context.Context, db *gorm.DB) iter.Seq2[domain.MovieInfo, error] {
	return repo.StreamMovieInfos(ctx, db)
}

func (movieInfoRepoShim) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.MovieInfo, error) {
	return repo.FindMovieInfo(ctx, db, id)
}

func (movieInfoRepoShim) DeleteByID(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteMovieInfo(ctx, db, id)
}

func (movieInfoRepoShim) DeleteAll(ctx context.Context, db *gorm.DB) error {
	return repo.DeleteAllMovieInfos(ctx, db)
}

func (movieInfoRepoShim) Stats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.MovieInfosStats(ctx, db)
}

// NewMovieInfoService builds the record service over db with the repo shim.
func NewMovieInfoService(db *gorm.DB) *services.MovieInfoService {
	return services.NewMovieInfoService(db, movieInfoRepoShim{})
}

// idempotencyStore implements handlers.IdempotencyStore over the
// idempotency table.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idempotencyStore) Lookup(ctx context.Context, scope, key string, now time.Time) (string, int, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return rec.ResourceID, rec.Status, true, nil
}

// Remember stores the outcome. A duplicate left behind by an expired record
// is purged and the insert retried once.
func (s idempotencyStore) Remember(ctx context.Context, scope, key, resourceID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, resourceID, status, s.ttl)
	if !errors.Is(err, repo.ErrDuplicate) {
		return err
	}
	if n, perr := repo.PurgeExpiredIdempotency(ctx, s.db, time.Now().UTC()); perr != nil || n == 0 {
		return err
	}
	_, err = repo.CreateIdempotency(ctx, s.db, scope, key, resourceID, status, s.ttl)
	return err
}

func (s idempotencyStore) exists(ctx context.Context, scope, key string, now time.Time) (bool, error) {
	_, _, found, err := s.Lookup(ctx, scope, key, now)
	return found, err
}

// RegisterRoutes attaches middleware and every endpoint to r.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	idem := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.exists))

	rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(
		NewMovieInfoService(db),
		idem,
		services.NewCounter(cfg.Stream.Interval, cfg.Stream.MonoMessage),
	)

	r.GET("/mono", h.Mono)
	r.GET(streamPath, h.Stream)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/movie-info", h.CreateMovieInfo)
		api.GET("/movie-infos", h.ListMovieInfos)
		api.GET("/movie-infos/:id", h.GetMovieInfo)
		api.DELETE("/movie-infos/:id", h.DeleteMovieInfo)
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// only the listed ones.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Idempotency-Replayed", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * also for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes; reads beyond it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
