package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/entry"
	"github.com/benvon/smart-pantry/internal/handlers"
	"github.com/benvon/smart-pantry/internal/middleware"
	"github.com/benvon/smart-pantry/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// RouterDeps are the collaborators served by the HTTP API
type RouterDeps struct {
	Core      *cascade.Coordinator
	Draft     *entry.Draft
	Suggester handlers.RecipeSuggester
	Clock     calendar.Clock
	Health    map[string]handlers.CheckFunc
	// RedisClient backs the rate limiter; nil uses an in-process store
	RedisClient *redis.Client
	OpenAPIPath string
	FrontendURL string
	RateLimit   string
	EnableHSTS  bool
	Tracing     bool
	Logger      *zap.Logger
}

// NewRouter builds the HTTP API with its middleware chain
func NewRouter(deps RouterDeps) (*mux.Router, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rateLimitMW, err := middleware.RateLimit(deps.RedisClient, deps.RateLimit, log.Named("ratelimit"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	if deps.Tracing {
		r.Use(otelmux.Middleware(telemetry.ServerServiceName))
	}
	r.Use(middleware.SecurityHeaders(deps.EnableHSTS))
	r.Use(middleware.CORS(deps.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(log))
	r.Use(middleware.Logging(log))

	// Public routes without rate limiting
	handlers.NewHealthChecker(deps.Health).RegisterRoutes(r)
	handlers.NewOpenAPIHandler(deps.OpenAPIPath).RegisterRoutes(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimitMW)

	items := handlers.NewItemHandler(deps.Core, deps.Clock, log.Named("items"))
	items.RegisterRoutes(api.PathPrefix("/items").Subrouter())
	handlers.NewSettingsHandler(deps.Core, log.Named("settings")).RegisterRoutes(api.PathPrefix("/settings").Subrouter())
	handlers.NewDraftHandler(deps.Draft, items, log.Named("draft")).RegisterRoutes(api.PathPrefix("/draft").Subrouter())
	handlers.NewRecipeHandler(deps.Core, deps.Suggester, log.Named("recipes")).RegisterRoutes(api.PathPrefix("/recipes").Subrouter())
	handlers.NewLifecycleHandler(deps.Core, log.Named("lifecycle")).RegisterRoutes(api.PathPrefix("/lifecycle").Subrouter())

	// Preflight requests; CORS has already written the headers
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r, nil
}
