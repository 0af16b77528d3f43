// ZapBridge - WhatsApp attachment-to-email relay
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zapbridge/zapbridge/internal/api"
	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/dialog"
	"github.com/zapbridge/zapbridge/internal/gateway"
	"github.com/zapbridge/zapbridge/internal/mailer"
	"github.com/zapbridge/zapbridge/internal/middleware"
	"github.com/zapbridge/zapbridge/internal/relay"
	"github.com/zapbridge/zapbridge/internal/session"
	"github.com/zapbridge/zapbridge/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	slog.Info("Starting bridge",
		"port", cfg.Port,
		"namespace", cfg.CredentialNamespace(),
		"credential_policy", cfg.CredentialPolicy)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		fatal("Failed to initialize database", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		fatal("Database health check failed", err)
	}
	slog.Info("Database connected")

	creds, err := session.NewCredentialStore(cfg, repo)
	if err != nil {
		fatal("Failed to initialize credential store", err)
	}

	// Only the local policy hands the gateway a filesystem directory; the
	// remote policy keeps the blobs on our side of the socket instead.
	authDir := ""
	var carrier gateway.CredentialCarrier
	if local, ok := creds.(*session.LocalCredentialStore); ok {
		authDir = local.Dir()
	}
	if cfg.CredentialPolicy == config.PolicyRemote {
		carrier = repo
	}

	gw := gateway.New(cfg.GatewayURL, cfg.CredentialNamespace(), authDir, cfg.FetchTimeout, carrier)
	mgr := session.NewManager(creds, session.NewConsoleNotifier(), gw)
	mgr.Startup()

	dialogs := dialog.NewStore(repo)
	engine := relay.NewEngine(dialogs, mailer.New(cfg.SMTP), gw, mgr, relay.Policy{
		DefaultRecipient: cfg.DefaultRecipient,
	})

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	api.NewHealthHandler(repo, mgr).RegisterHealth(r)
	api.NewPairingHandler(mgr).RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Connect(ctx); err != nil {
		fatal("Failed to connect to gateway", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Single dispatch goroutine: lifecycle events and messages are applied
	// in arrival order, so the engine never races the state machine.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-gw.Events():
				switch {
				case ev.Session != nil:
					mgr.HandleEvent(gctx, *ev.Session)
				case ev.Message != nil:
					engine.HandleMessage(gctx, ev.Message)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := gw.Close(); err != nil {
			slog.Error("Failed to close gateway connection", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		fatal("Bridge terminated", err)
	}

	slog.Info("Bridge stopped successfully")
}

// fatal logs the error and exits. Inside a container the exit is delayed so
// a restart policy does not spin the process in a tight crash loop.
func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	if config.IsContainer() {
		slog.Info("Container detected, delaying exit before restart")
		time.Sleep(5 * time.Second)
	}
	os.Exit(1)
}
