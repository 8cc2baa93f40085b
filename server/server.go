package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hush/auth"
	"hush/hr"
	mw "hush/middleware"
	"hush/session"
	"hush/store"
	"hush/web"
	"hush/ws"
)

type server struct {
	host           string
	env            string
	store          store.Store
	sessionManager *session.Manager
	local          *auth.Local
	google         *auth.Google
	hub            *ws.Hub
	web            *web.Web
}

type Cfg struct {
	Host         string
	ClientID     string
	ClientSecret string
	Env          string
	DBPath       string
}

func New(cfg Cfg) *server {
	store, err := store.New(cfg.DBPath)
	if err != nil {
		log.Panicln("something went wrong creating the store:", err)
	}

	sessionManager := session.NewManager(store, 30, 15, cfg.Env == "prod")
	local := auth.NewLocal(store, sessionManager)
	google := auth.NewGoogle(auth.GoogleCfg{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		CallbackURL:  cfg.Host + "/auth/google/secrets",
		Store:        store,
		SessionMgr:   sessionManager,
	})
	hub := ws.New()

	return &server{
		host:           cfg.Host,
		env:            cfg.Env,
		store:          store,
		sessionManager: sessionManager,
		local:          local,
		google:         google,
		hub:            hub,
		web:            web.New(store, sessionManager, hub),
	}
}

const (
	port            = 3000
	shutdownTimeout = 10 * time.Second
)

var portStr = fmt.Sprintf(":%d", port)

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", hr.W(s.web.HandleHome))
	mux.Handle("GET /login", hr.W(s.web.HandleLoginPage))
	mux.Handle("GET /register", hr.W(s.web.HandleRegisterPage))
	mux.Handle("GET /submit", hr.W(s.web.HandleSubmitPage))
	mux.Handle("GET /secrets", hr.W(s.web.HandleSecrets))
	mux.Handle("GET /secrets/live", hr.W(s.hub.Handle))
	mux.Handle("GET /logout", hr.W(s.web.HandleLogout))
	mux.Handle("GET /auth/google", hr.W(s.google.HandleLogin))
	mux.Handle("GET /auth/google/secrets", hr.W(s.google.HandleCallback))
	mux.Handle("POST /register", hr.W(s.local.HandleRegister))
	mux.Handle("POST /login", hr.W(s.local.HandleLogin))
	mux.Handle("POST /submit", hr.W(s.web.HandleSubmit))
	mux.Handle("GET /metrics", promhttp.Handler())

	protectedRoutes := map[string]bool{
		"/submit": true,
	}

	return mw.Chain(
		mux,
		mw.RateLimit(15, 50),
		mw.RequestID(),
		mw.Logger(),
		mw.Protect(protectedRoutes, s.sessionManager),
		mw.Metrics(),
	)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the store.
func (s *server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    portStr,
		Handler: s.routes(),
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("server is listening", "port", port, "env", s.env)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return s.store.Close()
}
