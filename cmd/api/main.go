package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/esealgo/internal/compositor"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/database"
	"github.com/xelth-com/esealgo/internal/handlers"
	"github.com/xelth-com/esealgo/internal/middleware"
	"github.com/xelth-com/esealgo/internal/services/account"
	"github.com/xelth-com/esealgo/internal/services/signing"
	"github.com/xelth-com/esealgo/internal/storage"
	"github.com/xelth-com/esealgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Object storage
	ctx := context.Background()
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("🗄️  Storage driver: %s", cfg.Storage.Driver)

	// 5. Services
	fetcher := signing.NewImageFetcher(objects, cfg.Storage.SignaturesBucket,
		compositor.NewHTTPFetcher(cfg.Finalize.FetchTimeout))
	comp := compositor.New(fetcher, compositor.Config{Concurrency: cfg.Finalize.FetchConcurrency})

	hub := websocket.NewHub()
	go hub.Run()

	accounts := account.NewService(db, cfg)
	signer := signing.NewService(db, objects, comp, hub, cfg)

	// 6. HTTP router
	var files http.Handler
	if local, ok := objects.(*storage.Local); ok {
		files = local.Handler()
	}
	router := handlers.NewRouter(cfg, accounts, signer, hub, files)

	handler := middleware.CORS(cfg.AllowedOrigins)(
		middleware.CaseInsensitivePrefix("/api/docs/verify/")(router))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server (%s) starting on port %s\n", cfg.NodeEnv, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	hub.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
