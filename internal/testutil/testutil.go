package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dom/lotus-draft/internal/api"
	"github.com/dom/lotus-draft/internal/api/handlers"
	"github.com/dom/lotus-draft/internal/config"
	redisclient "github.com/dom/lotus-draft/internal/redis"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/dom/lotus-draft/internal/repository/memory"
	repoPostgres "github.com/dom/lotus-draft/internal/repository/postgres"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/dom/lotus-draft/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_lotus_draft"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// NewTestRedis starts an in-process redis and returns a client for it.
func NewTestRedis(t *testing.T) (redisclient.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(mr.Addr(), nil)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client, mr
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                 "0", // Random port
		Environment:          "test",
		AllowedOrigins:       []string{"http://localhost:3000"},
		StorageBackend:       config.StorageMemory,
		StateTTL:             time.Hour,
		VisitMarkerTTL:       time.Hour,
		SessionSecret:        "test-session-secret-for-testing-only",
		SessionTTL:           time.Hour,
		UpstreamTimeout:      5 * time.Second,
		BotPickTimeout:       2 * time.Second,
		ScryfallMinInterval:  time.Millisecond,
		ScryfallCacheTTL:     24 * time.Hour,
		ScryfallMaxAttempts:  3,
		ScryfallRetryBackoff: 10 * time.Millisecond,
		ImageVersion:         "png",
		DefaultSet:           "mh3",
		RoomIdleTimeout:      time.Minute,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	Upstream *FakeUpstream
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Config   *config.Config
}

// NewTestServer creates a complete test server backed by in-memory storage
// and a fake upstream.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	fake := NewFakeUpstream(t)
	cfg := TestConfig()
	cfg.BoosterServiceURL = fake.URL()
	cfg.PredictionServiceURL = fake.URL()
	cfg.ScryfallURL = fake.URL()

	repos := memory.NewRepositories(cfg.VisitMarkerTTL, clock.New())

	scryfall, err := upstream.NewScryfallClient(upstream.ScryfallConfig{
		BaseURL:      cfg.ScryfallURL,
		MinInterval:  cfg.ScryfallMinInterval,
		CacheTTL:     cfg.ScryfallCacheTTL,
		MaxAttempts:  cfg.ScryfallMaxAttempts,
		RetryBackoff: cfg.ScryfallRetryBackoff,
		Timeout:      cfg.UpstreamTimeout,
		Transport:    http.DefaultTransport,
	})
	if err != nil {
		t.Fatalf("failed to create scryfall client: %v", err)
	}
	booster := upstream.NewBoosterClient(cfg.BoosterServiceURL, cfg.UpstreamTimeout)
	predictor := upstream.NewPredictionClient(cfg.PredictionServiceURL, cfg.UpstreamTimeout)

	services := service.NewServices(repos, service.Clients{
		Packs:     booster,
		Cards:     scryfall,
		Predictor: predictor,
	}, cfg)

	hub := websocket.NewHub(services.Draft, services.Store, cfg.RoomIdleTimeout)
	go hub.Run()

	router := api.NewRouter(services, hub, handlers.Upstreams{Sets: booster, Cards: scryfall}, cfg)
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		Upstream: fake,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api%s", ts.BaseURL(), path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + strings.TrimPrefix(ts.BaseURL(), "http")
	return fmt.Sprintf("%s/api/ws?token=%s", wsURL, token)
}
