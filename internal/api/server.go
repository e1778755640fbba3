package api

import (
	"context"
	"net/http"
	"time"

	"github.com/waqtor/waqtor-server/internal/campaign"
	"github.com/waqtor/waqtor-server/internal/config"
	"github.com/waqtor/waqtor-server/internal/rules"
	"github.com/waqtor/waqtor-server/internal/smartbot"
	"github.com/waqtor/waqtor-server/internal/throttle"
	"github.com/waqtor/waqtor-server/internal/wa"
	"github.com/waqtor/waqtor-server/internal/webhook"
)

// SessionClient is the WhatsApp session surface the API depends on.
// Kept narrow so handler tests can stub it.
type SessionClient interface {
	IsReady() bool
	Status() wa.Status
	PendingQR() (string, bool)
	SendText(ctx context.Context, chatID, text string) error
}

// Handlers carries every dependency the HTTP handlers need.
type Handlers struct {
	rules      *rules.Store
	history    *rules.HistoryStore
	bot        *smartbot.Orchestrator
	webhooks   *webhook.Store
	logs       *webhook.Buffer
	dispatcher *webhook.Dispatcher
	session    SessionClient
	limiter    *throttle.Limiter // nil when throttling is disabled
	campaigns  *campaign.Store
	runner     *campaign.Runner
}

func NewHandlers(
	ruleStore *rules.Store,
	history *rules.HistoryStore,
	bot *smartbot.Orchestrator,
	webhooks *webhook.Store,
	logs *webhook.Buffer,
	dispatcher *webhook.Dispatcher,
	session SessionClient,
	limiter *throttle.Limiter,
	campaigns *campaign.Store,
	runner *campaign.Runner,
) *Handlers {
	return &Handlers{
		rules:      ruleStore,
		history:    history,
		bot:        bot,
		webhooks:   webhooks,
		logs:       logs,
		dispatcher: dispatcher,
		session:    session,
		limiter:    limiter,
		campaigns:  campaigns,
		runner:     runner,
	}
}

// Server represents the admin API server
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, auth config.AuthConfig, handlers *Handlers) *Server {
	return &Server{
		config:   cfg,
		handler:  SetupRoutes(handlers, auth.APIKey),
		handlers: handlers,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
