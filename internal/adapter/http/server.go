package adapthttp

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"slimmom/internal/app"
	"slimmom/internal/domain"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	ledger   *app.LedgerService
	diary    *app.DiaryService
	trend    *app.TrendService
	authSvc  *app.AuthService
	profiles *app.ProfileService
	store    Pinger

	oidcConfig OIDCConfig
	dayLoc     *time.Location

	disableAuth bool
	fixedUser   *domain.User
}

// New creates a Server wired to the given application services. dayLoc is
// the zone that decides which calendar day "today" is.
func New(ls *app.LedgerService, ds *app.DiaryService, ts *app.TrendService, as *app.AuthService, store Pinger, dayLoc *time.Location) *Server {
	if dayLoc == nil {
		dayLoc = time.UTC
	}
	return &Server{ledger: ls, diary: ds, trend: ts, authSvc: as, store: store, dayLoc: dayLoc}
}

// WithOIDC enables single sign-on.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// WithProfiles serves the profile endpoints.
func (s *Server) WithProfiles(ps *app.ProfileService) *Server {
	s.profiles = ps
	return s
}

// WithoutAuth skips authentication and acts as user on every request.
// Intended for tests.
func (s *Server) WithoutAuth(user *domain.User) *Server {
	s.disableAuth = true
	s.fixedUser = user
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/setup", s.handleSetupUser).Methods(http.MethodPost)
	api.HandleFunc("/token", s.handleToken).Methods(http.MethodPost)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin).Methods(http.MethodGet)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback).Methods(http.MethodGet)

	diary := api.PathPrefix("/diary").Subrouter()
	diary.Use(s.authMiddleware)
	diary.HandleFunc("/entries", s.handleAddEntry).Methods(http.MethodPost)
	diary.HandleFunc("/entries", s.handleListEntries).Methods(http.MethodGet)
	diary.HandleFunc("/entries/{id}", s.handleRemoveEntry).Methods(http.MethodDelete)
	diary.HandleFunc("/days/{date}", s.handleDailyView).Methods(http.MethodGet)
	diary.HandleFunc("/days/{date}/reconcile", s.handleReconcile).Methods(http.MethodPost)
	diary.HandleFunc("/trend", s.handleTrend).Methods(http.MethodGet)

	if s.profiles != nil {
		api.Handle("/profile", s.authMiddleware(http.HandlerFunc(s.handleGetProfile))).Methods(http.MethodGet)
		api.Handle("/profile", s.authMiddleware(http.HandlerFunc(s.handlePutProfile))).Methods(http.MethodPut)
	}

	// Subrouters answer their own misses; mux does not fall back to the parent.
	for _, router := range []*mux.Router{r, api, diary} {
		setFallbacks(router)
	}

	return withNoCache(r)
}

func setFallbacks(router *mux.Router) {
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
