// Package app wires every component into a runnable server: storage,
// session/classroom services, the WebSocket registry and router, the
// speech pipeline, and the REST/health surface, then owns their
// startup/shutdown order the way the teacher's top-level Application did.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/classrelay/relay/internal/api"
	"github.com/classrelay/relay/internal/auth"
	"github.com/classrelay/relay/internal/classroom"
	"github.com/classrelay/relay/internal/config"
	"github.com/classrelay/relay/internal/diagnostics"
	"github.com/classrelay/relay/internal/fanout"
	"github.com/classrelay/relay/internal/handlers"
	"github.com/classrelay/relay/internal/health"
	"github.com/classrelay/relay/internal/router"
	"github.com/classrelay/relay/internal/session"
	"github.com/classrelay/relay/internal/speech"
	"github.com/classrelay/relay/internal/store"
	"github.com/classrelay/relay/internal/websocket"
	pkgdatabase "github.com/classrelay/relay/pkg/database"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

const authTokenTTL = 12 * time.Hour

// Application coordinates every long-lived component: the durable store,
// the in-memory registry and health sweep, and the HTTP server exposing
// both the WebSocket upgrade endpoint and the REST surface.
type Application struct {
	config     *config.Config
	store      *store.Store
	registry   *websocket.Registry
	monitor    *health.Monitor
	classroom  *classroom.Service
	httpServer *http.Server
}

// NewApplication wires components in dependency order: store, session and
// classroom services, registry, speech pipeline, router and handlers,
// health monitor, REST server, WebSocket handler, HTTP mux.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := store.Open(&pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	sessions := session.NewService(db, cfg.Session.StudentDrainGrace)
	classrooms := classroom.NewService(db, cfg.Session.ClassroomCodeExpiration)
	registry := websocket.NewRegistry()

	pipeline, err := newSpeechPipeline(context.Background(), cfg.Speech)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize speech pipeline: %w", err)
	}
	fanoutService := fanout.NewService(registry, pipeline, db)
	authenticator := auth.NewAuthenticator(db, authTokenTTL)

	deps := &handlers.Deps{
		Registry:   registry,
		Classroom:  classrooms,
		Sessions:   sessions,
		Fanout:     fanoutService,
		Repo:       db,
		Speech:     pipeline,
		Auth:       authenticator,
		DrainGrace: cfg.Session.StudentDrainGrace,
	}
	rtr := newRouter(db, deps)

	monitor := health.NewMonitor(registry, cfg.Session.HealthCheckInterval, cfg.WebSocket.ReadTimeout)
	diag := diagnostics.NewService(registry, db)
	apiServer := api.NewServer(sessions, db, diag, registry)
	wsHandler := websocket.NewHandler(registry, rtr, sessions, classrooms)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      db,
		registry:   registry,
		monitor:    monitor,
		classroom:  classrooms,
		httpServer: httpServer,
	}, nil
}

func newRouter(repo interfaces.SessionRepository, deps *handlers.Deps) *router.Router {
	rtr := router.NewRouter(repo)
	rtr.Register(types.TypeRegister, deps.Register)
	rtr.Register(types.TypeTranscription, deps.Transcription)
	rtr.Register(types.TypeAudio, deps.Audio)
	rtr.Register(types.TypeTTSRequest, deps.TTSRequest)
	rtr.Register(types.TypeSettings, deps.Settings)
	rtr.Register(types.TypePing, deps.Ping)
	rtr.Register(types.TypePong, deps.Pong)
	return rtr
}

func newSpeechPipeline(ctx context.Context, cfg *config.SpeechConfig) (interfaces.SpeechPipeline, error) {
	switch cfg.Provider {
	case "openai":
		return speech.NewOpenAIPipeline(cfg.APIKey, cfg.Model)
	default:
		return speech.NewGeminiPipeline(ctx, cfg.APIKey, cfg.Model)
	}
}

// Start launches the classroom-code cleanup loop, the health monitor, and
// the HTTP server. It returns nil after a fixed 100ms startup wait, or
// earlier with an error if the listener fails or ctx is done first.
func (a *Application) Start(ctx context.Context) error {
	log.Printf("starting relay on %s", a.httpServer.Addr)

	go a.classroom.RunCleanupLoop(ctx, a.config.Session.ClassroomCodeCleanupInterval)
	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = a.monitor.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("relay started successfully")
		return nil
	case <-ctx.Done():
		_ = a.monitor.Stop()
		return ctx.Err()
	}
}

// Stop shuts the HTTP server, health monitor, and store down in reverse
// dependency order.
func (a *Application) Stop(ctx context.Context) error {
	log.Printf("shutting down relay")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	if err := a.monitor.Stop(); err != nil {
		log.Printf("health monitor shutdown error: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("store shutdown error: %v", err)
	}

	log.Printf("relay shutdown complete")
	return nil
}

// Addr returns the HTTP server's bind address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}
