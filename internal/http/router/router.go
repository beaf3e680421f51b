package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/realtime-hub/internal/health"
	"github.com/sandeepkv93/realtime-hub/internal/http/handler"
	"github.com/sandeepkv93/realtime-hub/internal/http/middleware"
	"github.com/sandeepkv93/realtime-hub/internal/http/response"
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	ContactHandler  *handler.ContactHandler
	ChatHandler     *handler.ChatHandler
	CatalogHandler  *handler.CatalogHandler
	PresenceHandler *handler.PresenceHandler
	WSHandler       http.Handler
	Authenticator   middleware.TokenAuthenticator
	CORSOrigins     []string
	BodyLimitBytes  int64
	Readiness       *health.ProbeRunner
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	bodyLimit := dep.BodyLimitBytes
	if bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(bodyLimit))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	requireAuth := middleware.AuthMiddleware(dep.Authenticator)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", dep.AuthHandler.Register)
			r.Post("/login", dep.AuthHandler.Login)
			r.With(requireAuth).Post("/logout", dep.AuthHandler.Logout)
			r.With(requireAuth).Get("/me", dep.AuthHandler.Me)
		})

		// The websocket handler authenticates during the handshake itself so
		// that failures can be reported as close frames.
		if dep.WSHandler != nil {
			r.Handle("/ws", dep.WSHandler)
		}

		r.Get("/stats/presence", dep.PresenceHandler.Stats)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/contacts", dep.ContactHandler.List)
			r.Post("/contacts/messages", dep.ContactHandler.Send)
			r.Get("/contacts/messages/{peer_id}", dep.ContactHandler.Conversation)

			r.Post("/chat/completions", dep.ChatHandler.Completions)
			r.Get("/models", dep.CatalogHandler.ListModels)
			r.Get("/role-prompts", dep.CatalogHandler.ListRolePrompts)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireAdmin)
			r.Post("/models", dep.CatalogHandler.CreateModel)
			r.Post("/role-prompts", dep.CatalogHandler.CreateRolePrompt)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
