package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	servermiddleware "github.com/testsmith/testsmith/cmd/server/internal/middleware"
	"github.com/testsmith/testsmith/cmd/server/internal/pipeline"
	"github.com/testsmith/testsmith/cmd/server/internal/ratelimit"
	"github.com/testsmith/testsmith/cmd/server/internal/response"
	"github.com/testsmith/testsmith/internal/config"
	"github.com/testsmith/testsmith/internal/logger"
)

const name = "github.com/testsmith/testsmith/cmd/server/internal/routes/v1"

var tracer = otel.Tracer(name)

const jobContextKey = "job"

type Handler struct {
	orchestrator *pipeline.Orchestrator
	config       *config.Config
}

func NewRedisLimiter(
	rdb *redis.Client,
	limiterKey string,
	perMinute int64,
	failOpen bool,
	onlyMethod *string,
) middleware.RateLimiterConfig {
	store := ratelimit.NewRedisLimitStore(ratelimit.RedisLimiterConfig{
		PerMinute:   perMinute,
		RedisClient: rdb,
		LimiterKey:  limiterKey,
		FailOpen:    failOpen,
	})

	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			p, err := principal(c)
			if err != nil {
				return "", err
			}
			return p.ID.String(), nil
		},
		ErrorHandler: func(_ echo.Context, _ error) error {
			return response.UnauthorizedError
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if err != nil {
				logger.Logger.WarnContext(c.Request().Context(), "rate limiter unavailable",
					"identifier", identifier,
					"error", err,
				)
			}
			return response.RateLimitedError
		},
	}
}

func NewHandler(orchestrator *pipeline.Orchestrator, cfg *config.Config) Handler {
	return Handler{
		orchestrator: orchestrator,
		config:       cfg,
	}
}

// AddRoutes registers the v1 API. rdb may be nil when rate limiting is disabled.
func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler, rdb *redis.Client) {
	l := logger.Logger

	v1Group := e.Group("/v1", middleware.BasicAuth(middlewareHandler.BasicAuthValidator))

	reposGroup := v1Group.Group("/repos")
	generateGroup := v1Group.Group("/generate")
	testcasesGroup := v1Group.Group("/testcases")

	if h.config.RateLimitEnabled() && rdb != nil {
		post := http.MethodPost
		generateGroup.Use(
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					rdb,
					"generate",
					h.config.RateLimit.GeneratePerMinute,
					h.config.RateLimit.FailOpen,
					&post,
				),
			),
		)
	} else {
		l.Warn("not configured to have a generation rate limit")
	}

	reposGroup.GET("/", h.ListRepositories)
	reposGroup.GET("/:owner/:repo/files/", h.ListFiles)
	reposGroup.POST("/:owner/:repo/contents/", h.ReadFiles)

	generateGroup.POST("/summary/", h.GenerateSummary)
	generateGroup.POST("/code/", h.GenerateCode)
	generateGroup.POST("/pr/", h.GeneratePullRequest)

	testcasesGroup.GET("/", h.ListTestJobs)
	testcasesGroup.GET(
		"/:test_job_id/",
		h.GetTestJob,
		servermiddleware.PopulateJob(middlewareHandler, "test_job_id", jobContextKey),
	)
}
