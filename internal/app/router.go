package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/palaver-board/palaver/internal/auth"
	"github.com/palaver-board/palaver/internal/categories"
	"github.com/palaver-board/palaver/internal/mail"
	"github.com/palaver-board/palaver/internal/observability"
	"github.com/palaver-board/palaver/internal/posts"
	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/roles"
	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/internal/sse"
	"github.com/palaver-board/palaver/internal/threads"
	"github.com/palaver-board/palaver/internal/users"
	"github.com/palaver-board/palaver/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler       *auth.Handler
	RolesHandler      *roles.Handler
	RBACHandler       *rbac.Handler
	UsersHandler      *users.Handler
	CategoriesHandler *categories.Handler
	ThreadsHandler    *threads.Handler
	PostsHandler      *posts.Handler
	MailHandler       *mail.Handler
	JobsHandler       *jobs.Handler

	MailButtonStream *sse.StreamHandler
	MailPageStream   *sse.StreamHandler
}

// NewRouter constructs the chi router. Regular API routes run behind
// the request timeout and rate limit; the event stream routes only get
// the base chain because they stay open far longer than any timeout.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	cfg := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	for _, mw := range BaseMiddlewares(cfg) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range APIMiddlewares(cfg) {
			r.Use(mw)
		}

		r.Get("/csrf", func(w http.ResponseWriter, req *http.Request) {
			sess := shared.SessionFromContext(req.Context())
			token, err := params.CSRFManager.EnsureToken(req.Context(), sess)
			if err != nil {
				params.Logger.Error("issue csrf token", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"csrfToken":"` + token + `"}`))
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/categories", params.CategoriesHandler.MountRoutes)
		r.Route("/threads", params.ThreadsHandler.MountRoutes)
		r.Route("/posts", params.PostsHandler.MountRoutes)
		r.Route("/mail", params.MailHandler.MountRoutes)
		r.Route("/admin", func(r chi.Router) {
			r.Route("/roles", params.RolesHandler.MountRoutes)
			r.Route("/jobs", params.JobsHandler.MountRoutes)
			params.RBACHandler.MountRoutes(r)
		})
	})

	// Long-lived notification streams.
	r.Group(func(r chi.Router) {
		r.Method(http.MethodGet, "/events/mail-button", params.MailButtonStream)
		r.Method(http.MethodGet, "/events/mail-page", params.MailPageStream)
	})

	return r
}
