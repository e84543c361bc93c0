package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tezansahu/career-mentor-agent/internal/config"
	"github.com/tezansahu/career-mentor-agent/internal/llm"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/search"
	"github.com/tezansahu/career-mentor-agent/internal/session"
	"github.com/tezansahu/career-mentor-agent/internal/web/handlers"
	"github.com/tezansahu/career-mentor-agent/internal/web/static"
)

// Default rate limit: enough for a single user clicking around, low
// enough to blunt scripted abuse.
const (
	defaultRatePerSecond = 10.0
	defaultRateBurst     = 30
)

// ServerConfig assembles the web server.
type ServerConfig struct {
	Logger       log.Logger
	SessionStore *session.Store
	Config       *config.Config

	// CSRFSecret signs CSRF tokens; at least 32 bytes.
	CSRFSecret []byte

	// IsDev relaxes the Secure cookie flag and the CSP for local HTTP.
	IsDev bool

	// RateBurst overrides the default burst when > 0.
	RateBurst int

	// ProviderFactory and SearchFactory default to the real GitHub
	// Models provider and Serper client; tests inject fakes.
	ProviderFactory handlers.ProviderFactory
	SearchFactory   handlers.SearchToolFactory
}

// Server is the assembled HTTP surface: routes, middleware and
// handlers.
type Server struct {
	logger   log.Logger
	mux      *http.ServeMux
	handler  http.Handler
	static   http.Handler
	isDev    bool
	sessions *handlers.Sessions
	chat     *handlers.Chat
}

// NewServer wires the handlers and middleware chain.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("web: logger is required")
	}
	if cfg.SessionStore == nil {
		return nil, fmt.Errorf("web: session store is required")
	}
	if cfg.Config == nil {
		return nil, fmt.Errorf("web: config is required")
	}
	if len(cfg.CSRFSecret) < config.MinHMACSecretLength {
		return nil, fmt.Errorf("web: CSRF secret must be at least %d bytes", config.MinHMACSecretLength)
	}

	logger := cfg.Logger.With("component", "web")

	providerFactory := cfg.ProviderFactory
	if providerFactory == nil {
		providerFactory = func(token, model string) llm.Provider {
			return llm.NewOpenAIProvider(token, model)
		}
	}
	searchFactory := cfg.SearchFactory
	if searchFactory == nil {
		searchFactory = func(apiKey string) llm.Tool {
			return search.NewTool(search.NewClient(apiKey, logger.With("component", "search")))
		}
	}

	sessions := handlers.NewSessions(cfg.SessionStore, cfg.CSRFSecret, cfg.IsDev)

	chat := handlers.NewChat(handlers.ChatConfig{
		Logger:   logger,
		Sessions: sessions,
		Defaults: session.Credentials{
			Token:     cfg.Config.Token,
			Model:     cfg.Config.Model,
			SerperKey: cfg.Config.SerperAPIKey,
		},
		MaxTurns:        cfg.Config.MaxTurns,
		ProviderFactory: providerFactory,
		SearchFactory:   searchFactory,
	})
	sessions.OnDelete(chat.DropMentor)

	pages := handlers.NewPages(handlers.PagesConfig{
		Logger:   logger,
		Sessions: sessions,
		Chat:     chat,
	})
	settings := handlers.NewSettings(logger, sessions)

	mux := http.NewServeMux()
	pages.RegisterRoutes(mux)
	chat.RegisterRoutes(mux)
	sessions.RegisterRoutes(mux)
	settings.RegisterRoutes(mux)
	handlers.NewHealth().RegisterRoutes(mux)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	limiter := newRateLimiter(defaultRatePerSecond, burst)

	// Innermost first: CSRF guards the mux, method override rewrites
	// the verb before CSRF sees it, rate limiting sits outside both,
	// and recovery wraps everything.
	var handler http.Handler = mux
	handler = RequireCSRF(sessions, logger)(handler)
	handler = MethodOverrideMiddleware(handler)
	handler = RateLimitMiddleware(limiter, cfg.Config.TrustProxy, logger)(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = RecoveryMiddleware(logger)(handler)

	return &Server{
		logger:   logger,
		mux:      mux,
		handler:  handler,
		static:   http.StripPrefix("/static/", static.Handler()),
		isDev:    cfg.IsDev,
		sessions: sessions,
		chat:     chat,
	}, nil
}

// ServeHTTP applies the security headers, serves static assets
// directly and routes everything else through the middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.setSecurityHeaders(w)

	if strings.HasPrefix(r.URL.Path, "/static/") {
		s.static.ServeHTTP(w, r)
		return
	}

	s.handler.ServeHTTP(w, r)
}

func (s *Server) setSecurityHeaders(w http.ResponseWriter) {
	csp := "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self'"
	w.Header().Set("Content-Security-Policy", csp)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}
