package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sitework/sitework/handlers"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/tokens"
	"github.com/sitework/sitework/pkg/middleware"
)

var startTime = time.Now()

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Options carries the optional pieces of the HTTP stack.
type Options struct {
	// OIDC, when set, accepts provider-issued tokens alongside local ones and
	// enables auth_code login.
	OIDC      middleware.Verifier
	Exchanger handlers.CodeExchanger
	// Redis backs the shared rate limiter when RateLimit.UseRedis is set.
	Redis   *redis.Client
	Ready   map[string]Check
	Version string
}

// New builds the engine with every route mounted.
func New(cfg *config.Config, s *Services, o Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.CORS.AllowedOrigins), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readyHandler(o.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r, o.Version)

	verifier := middleware.Chain{tokens.NewVerifier(cfg.JWT.Secret)}
	if o.OIDC != nil {
		verifier = append(verifier, o.OIDC)
	}
	auth := middleware.AuthMiddleware(verifier,
		middleware.WithRevocation(s.Blacklist),
		middleware.WithProfiles(s.Profiles))
	limit := rateLimiter(cfg.RateLimit, o.Redis)

	authGroup := r.Group("/")
	if limit != nil {
		authGroup.Use(limit)
	}
	ah := handlers.NewAuthHandler(cfg.JWT, s.Profiles, s.Sessions, s.Blacklist)
	if o.Exchanger != nil && o.OIDC != nil {
		ah.WithOIDC(o.Exchanger, o.OIDC)
	}
	ah.Register(authGroup, auth)

	api := r.Group("/api", auth)
	if limit != nil {
		// after auth so authenticated callers are limited per user
		api.Use(limit)
	}
	handlers.ClientResource(s.Clients).Register(api)
	handlers.SupplierResource(s.Suppliers).Register(api)
	projects := handlers.ProjectResource(s.Projects).Register(api)
	handlers.RegisterMilestones(projects)
	specs := handlers.MaterialSpecResource(s.MaterialSpecs).Register(api)
	siteReports := handlers.ConstructionReportResource(s.SiteReports).Register(api)
	handlers.NewSubmitHandler(s.Submitter).Register(specs, siteReports)
	handlers.NewApprovalHandler(s.Approvals).Register(api)
	handlers.NewNotificationHandler(s.Notifications).Register(api)
	handlers.NewFileHandler(s.Files).Register(api)
	handlers.NewReportHandler(s.Reports).Register(api)
	handlers.NewAdminHandler(s.Cleaner, s.CleanupOpts, s.Health).Register(api)
	return r
}

func rateLimiter(cfg config.RateLimitConfig, client *redis.Client) gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}
	if cfg.UseRedis && client != nil {
		win := time.Duration(cfg.WindowSeconds) * time.Second
		return middleware.RedisRateLimitMiddleware(client, cfg.RPS, cfg.Burst, win)
	}
	return middleware.RateLimitMiddleware(cfg.RPS, cfg.Burst)
}

// readyHandler returns 200 only when every registered dependency answers.
func readyHandler(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		for name, check := range checks {
			ok := check(ctx) == nil
			deps[name] = ok
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}
