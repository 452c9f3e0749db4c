package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ivandudin29/tg-notes-bot/internal/adapter/notify"
	"github.com/ivandudin29/tg-notes-bot/internal/config"
	"github.com/ivandudin29/tg-notes-bot/internal/hub"
	"github.com/ivandudin29/tg-notes-bot/internal/reminder"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
	store "github.com/ivandudin29/tg-notes-bot/internal/repository"
	"github.com/ivandudin29/tg-notes-bot/internal/service"
	"github.com/ivandudin29/tg-notes-bot/internal/session"
	handler "github.com/ivandudin29/tg-notes-bot/internal/transport/http"
	"github.com/ivandudin29/tg-notes-bot/internal/transport/ws"
	"github.com/ivandudin29/tg-notes-bot/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Debug() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	log.Printf("Starting planbot...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("WebSocket Port: %d", cfg.WSPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Sessions: %s, Outbound: %s, Reminder mode: %s", cfg.SessionBackend, cfg.OutboundMode, cfg.ReminderMode)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	text, err := render.NewLocalizer(cfg.Locale, cfg.Location)
	if err != nil {
		log.Fatalf("Failed to initialize localizer: %v", err)
	}

	// Initialize workflow engine and router
	var sessions session.Store
	switch cfg.SessionBackend {
	case config.SessionBackendSQLite:
		sessions = session.NewSQLStore(db, workflow.Codec{}, cfg.SessionTTL)
	default:
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}
	engine := workflow.New(db, sessions, workflow.WithLocalizer(text))
	svc := service.New(db, engine, service.WithLocalizer(text))

	// Initialize hub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connectionHub := hub.NewHub()
	go connectionHub.Run(ctx)

	// Initialize reminder dispatcher
	policy, err := loadPolicy(ctx, cfg.ReminderPolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize reminder policy: %v", err)
	}
	dispatcher := reminder.NewDispatcher(db, newNotifier(cfg, connectionHub), policy, reminder.Config{
		ScanInterval: cfg.ReminderScanInterval,
		Horizon:      cfg.ReminderHorizon,
		SendDelay:    cfg.ReminderSendDelay,
		Mode:         reminder.Mode(cfg.ReminderMode),
		Verbose:      cfg.Debug(),
	}, reminder.WithLocalizer(text))

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx)
	}()

	// Create HTTP server
	httpServer := handler.NewServer(svc, connectionHub)

	// Create WebSocket Echo server
	wsServer := ws.NewServer(cfg, connectionHub, svc)
	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Logger())
	wsEcho.Use(middleware.Recover())
	wsEcho.GET("/ws", wsServer.HandleWebSocket)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := wsEcho.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start WebSocket server: %v", err)
		}
	}()

	log.Printf("HTTP server started on port %d", cfg.HTTPPort)
	log.Printf("WebSocket server started on port %d", cfg.WSPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down planbot...")

	// Dispatcher stops before the servers
	cancel()
	<-dispatcherDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := wsEcho.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown WebSocket server gracefully: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("Failed to close store: %v", err)
	}

	log.Println("Planbot stopped")
}

func newNotifier(cfg *config.Config, h *hub.Hub) notify.Notifier {
	switch cfg.OutboundMode {
	case config.OutboundWebhook:
		return notify.NewWebhookNotifier(cfg.OutboundWebhookURL, nil)
	case config.OutboundBoth:
		return notify.Multi{notify.NewHubNotifier(h), notify.NewWebhookNotifier(cfg.OutboundWebhookURL, nil)}
	default:
		return notify.NewHubNotifier(h)
	}
}

func loadPolicy(ctx context.Context, path string) (*reminder.Policy, error) {
	module := reminder.DefaultPolicy
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		module = string(data)
		log.Printf("Using reminder policy from %s", path)
	}
	return reminder.NewPolicy(ctx, module)
}
