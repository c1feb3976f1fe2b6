package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/notify"
	"github.com/teresa-solution/tenant-branding-service/internal/service"
)

// SessionManager opens and closes desktop notification sessions
type SessionManager interface {
	Open(userID, deviceID string) (*notify.Session, error)
	Get(deviceID string) *notify.Session
	Close(deviceID string) bool
}

// Deps collects the collaborators of the REST server. Sessions, Desktops
// and Auth are optional.
type Deps struct {
	Resolver     service.BrandingReader
	Mutator      service.BrandingWriter
	Provisioner  service.AdminProvisioner
	Tokens       service.PushTokenSaver
	Notifier     service.NotificationSender
	Desktops     service.DesktopLocator
	Sessions     SessionManager
	Auth         service.TokenValidator
	MaxLogoBytes int64
	AllowOrigins []string
}

// Server is the REST API server
type Server struct {
	deps   Deps
	router chi.Router
	server *http.Server
}

func NewServer(deps Deps, readTimeout, writeTimeout time.Duration) *Server {
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.deps.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/admins", s.HandleCreateAdmin)
		r.Get("/tenants/{id}/branding", s.HandleGetBranding)
		r.Put("/tenants/{id}/branding", s.HandleUpdateBranding)
		r.Post("/users/{id}/push-tokens", s.HandleRegisterPushToken)
		r.Post("/notifications", s.HandleSendNotification)

		// Desktop shells
		r.Post("/desktop/{device}/window", s.HandleWindowControl)
		r.Post("/desktop/{device}/session", s.HandleOpenSession)
		r.Delete("/desktop/{device}/session", s.HandleCloseSession)
	})
}

func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type invokerKey struct{}

// authMiddleware attaches the bearer token's credentials to the request.
// Requests without a token proceed anonymously.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || s.deps.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, ErrCodeUnauthorized, "invalid authorization header", nil)
			return
		}
		inv, err := s.deps.Auth.Validate(parts[1])
		if err != nil {
			respondError(w, ErrCodeUnauthorized, "invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), invokerKey{}, inv)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize applies check to the request's invoker when authentication is
// configured, writing the error response on refusal
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, check func(model.InvokerCredentials) error) bool {
	if s.deps.Auth == nil {
		return true
	}
	if err := check(invokerFrom(r.Context())); err != nil {
		respondServiceError(w, err)
		return false
	}
	return true
}

func invokerFrom(ctx context.Context) model.InvokerCredentials {
	inv, _ := ctx.Value(invokerKey{}).(model.InvokerCredentials)
	return inv
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
