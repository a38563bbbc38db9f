package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/mindwell-app/mindwell-server/auth"
	"github.com/mindwell-app/mindwell-server/auth/audit"
	"github.com/mindwell-app/mindwell-server/insights"
	"github.com/mindwell-app/mindwell-server/internal/config"
	"github.com/mindwell-app/mindwell-server/ratelimit"
	"github.com/mindwell-app/mindwell-server/realtime"
	"github.com/mindwell-app/mindwell-server/records"
	"github.com/mindwell-app/mindwell-server/resettoken"
	"github.com/mindwell-app/mindwell-server/server/authflowrepo"
	"github.com/mindwell-app/mindwell-server/sessions"
	"github.com/mindwell-app/mindwell-server/users"
)

// OidcConfig bundles the discovered Google provider with its oauth2 client
// configuration and verifier.
type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// Repos are the storage dependencies the server is wired with. Callers pick
// the Postgres or in-memory implementations.
type Repos struct {
	Users       users.UserRepo
	Records     records.Repo
	ResetTokens resettoken.Repo
	Audit       audit.Recorder
	Counters    ratelimit.CounterStore
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	verifier *auth.Verifier
	sessions *sessions.Manager
	reset    *resettoken.Issuer
	users    users.UserRepo
	records  records.Repo
	limiter  *ratelimit.Limiter
	hub      *realtime.Hub
	crisis   *insights.CrisisDetector

	authState authflowrepo.Repo
	closers   []func()

	googleOidc     *OidcConfig
	googleOidcLock sync.RWMutex
}

// In-flight federated sign-ins are short-lived; anything older than the max
// age was abandoned and gets swept.
const (
	authFlowSweepInterval = time.Minute
	authFlowMaxAge        = 10 * time.Minute
)

func New(cfg config.Config, repos Repos) (*Server, error) {
	limiter := ratelimit.NewLimiter(repos.Counters)

	verifier, err := auth.NewVerifier(repos.Users, repos.Audit, limiter,
		auth.WithLockoutPolicy(cfg.GetLockoutThreshold(), cfg.GetLockoutDuration()),
		auth.WithLoginRateLimit(cfg.GetLoginRateCeiling(), cfg.GetLoginRateWindow()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to create credential verifier")
	}

	sessionManager, err := sessions.NewManager(cfg.GetSessionSecret(),
		sessions.WithLifetime(cfg.GetSessionLifetime(), cfg.GetSessionRefreshThreshold()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to create session manager")
	}

	issuer, err := resettoken.NewIssuer(repos.Users, repos.ResetTokens,
		resettoken.WithTTL(cfg.GetResetTokenTTL()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to create reset token issuer")
	}

	authState := authflowrepo.NewInMemoryRepo()
	authState.StartSweeper(authFlowSweepInterval, authFlowMaxAge)

	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		verifier:  verifier,
		sessions:  sessionManager,
		reset:     issuer,
		users:     repos.Users,
		records:   repos.Records,
		limiter:   limiter,
		hub:       realtime.NewHub(),
		crisis:    insights.NewCrisisDetector(),
		authState: authState,
	}
	s.closers = append(s.closers, authState.Close)
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub exposes the realtime hub so the caller can shut it down or publish
// server-side events.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// Close stops the server's background workers.
func (s *Server) Close() {
	for _, closeFn := range s.closers {
		closeFn()
	}
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
