package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/lotus-draft/internal/api"
	"github.com/dom/lotus-draft/internal/api/handlers"
	"github.com/dom/lotus-draft/internal/config"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	redisclient "github.com/dom/lotus-draft/internal/redis"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/dom/lotus-draft/internal/repository/memory"
	"github.com/dom/lotus-draft/internal/repository/postgres"
	redisrepo "github.com/dom/lotus-draft/internal/repository/redis"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/dom/lotus-draft/internal/websocket"
)

const userAgent = "lotus-draft/1.0"

// purger is implemented by stores whose expired rows need sweeping.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	repos, err := openRepositories(cfg)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	if p, ok := repos.Visits.(purger); ok {
		go purgeLoop(ctx, p, cfg.PurgeInterval)
	}

	// Initialize upstream clients
	scryfall, err := upstream.NewScryfallClient(upstream.ScryfallConfig{
		BaseURL:      cfg.ScryfallURL,
		MinInterval:  cfg.ScryfallMinInterval,
		CacheTTL:     cfg.ScryfallCacheTTL,
		MaxAttempts:  cfg.ScryfallMaxAttempts,
		RetryBackoff: cfg.ScryfallRetryBackoff,
		Timeout:      cfg.UpstreamTimeout,
		UserAgent:    userAgent,
		Clock:        clock.New(),
	})
	if err != nil {
		log.Fatalf("failed to create scryfall client: %v", err)
	}
	booster := upstream.NewBoosterClient(cfg.BoosterServiceURL, cfg.UpstreamTimeout)
	predictor := upstream.NewPredictionClient(cfg.PredictionServiceURL, cfg.UpstreamTimeout)

	// Initialize services
	services := service.NewServices(repos, service.Clients{
		Packs:     booster,
		Cards:     scryfall,
		Predictor: predictor,
	}, cfg)

	// Initialize WebSocket hub
	hub := websocket.NewHub(services.Draft, services.Store, cfg.RoomIdleTimeout)
	go hub.Run()

	// Initialize router
	router := api.NewRouter(services, hub, handlers.Upstreams{Sets: booster, Cards: scryfall}, cfg)

	// Create server. Round resolution waits on several upstream calls, so
	// the write timeout is generous.
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s (storage: %s)", cfg.Port, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	hub.Stop()

	log.Println("Server stopped")
}

func openRepositories(cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		client, err := redisclient.NewClientFromURL(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewRepositories(&redisrepo.Config{
			Client:   client,
			StateTTL: cfg.StateTTL,
			VisitTTL: cfg.VisitMarkerTTL,
		})
	case config.StorageMemory:
		log.Println("WARN using in-memory storage; drafts are lost on restart")
		return memory.NewRepositories(cfg.VisitMarkerTTL, clock.New()), nil
	default:
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return postgres.NewRepositories(db, cfg.VisitMarkerTTL, clock.New()), nil
	}
}

func purgeLoop(ctx context.Context, p purger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Printf("ERROR [purgeLoop] %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Purged %d expired visit markers", n)
			}
		}
	}
}
