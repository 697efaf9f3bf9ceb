package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"coffee-fleet-backend/internal/access"
	"coffee-fleet-backend/internal/api"
	"coffee-fleet-backend/internal/conversation"
	"coffee-fleet-backend/internal/db"
	"coffee-fleet-backend/internal/dialogue"
	"coffee-fleet-backend/internal/ledger"
	"coffee-fleet-backend/internal/metrics"
	"coffee-fleet-backend/internal/notification"
	"coffee-fleet-backend/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "coffeed ", log.LstdFlags)

	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	dialogues := dialogue.NewManager(cfg.Dialogue.TTL)
	m := metrics.New(func() float64 { return float64(dialogues.Active()) })

	gate, err := access.NewGate(appStore, cfg.Access)
	if err != nil {
		return err
	}
	logger.Printf("access policy %q with %d admin id(s)", cfg.Access.Policy, len(cfg.Access.AdminIDs))

	engineOpts := []ledger.EngineOption{ledger.WithMetrics(m)}
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		engineOpts = append(engineOpts, ledger.WithLowStockAlerts(pool, ledger.Thresholds(cfg.Ledger.LowStock)))
		logger.Printf("low stock alerts enabled with %d worker(s)", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; low stock alerts disabled")
	}

	recorder, err := ledger.NewRecorder(appStore, cfg.Ledger.Timezone, m)
	if err != nil {
		return err
	}
	conv := conversation.NewService(gate, ledger.NewEngine(appStore, engineOpts...), recorder, appStore, dialogues, m)

	router := api.NewRouter(api.NewHandler(appStore, gate, conv, webpushOptions), cfg.Server, m.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Println("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Println("Server gracefully stopped")
	return nil
}
