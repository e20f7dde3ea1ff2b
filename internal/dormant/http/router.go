package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/pkg/httpx"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	LifecycleService *service.LifecycleService
	ResetService     *service.ResetService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLifecycle()
	r.registerReset()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLifecycle() {
	confirmHandler := &ConfirmHandler{LifecycleService: r.LifecycleService}
	deactivateHandler := &DeactivateHandler{LifecycleService: r.LifecycleService}

	// GET /confirm - strict rate limit (token guesses land here)
	r.Mux.Handle("GET /confirm",
		httpx.Chain(confirmHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /deactivate/{username} - strict rate limit
	r.Mux.Handle("GET /deactivate/{username}",
		httpx.Chain(deactivateHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerReset() {
	resetHandler := &ResetPasswordHandler{ResetService: r.ResetService}

	// GET /reset_password - lenient rate limit (just displays the form)
	r.Mux.Handle("GET /reset_password",
		httpx.Chain(http.HandlerFunc(resetHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /reset_password - strict rate limit keyed by IP and target user
	r.Mux.Handle("POST /reset_password",
		httpx.Chain(http.HandlerFunc(resetHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "user"),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, req *http.Request) {
		renderPage(w, req, http.StatusOK, "message.html", messagePage{
			Title:  "Account lifecycle service",
			Detail: "This service processes account confirmation and password reset links sent by email.",
		})
	})
}
