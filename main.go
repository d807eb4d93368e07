package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "Path to TOML config file")
	dbPath := flag.String("db", "rooms.db", "Path to local room-metadata database")
	flag.Parse()

	// Environment variables may come from a .env file during development.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	secret := os.Getenv("APP_SECRET")
	if secret == "" {
		log.Fatalf("APP_SECRET not set")
	}
	verifier := NewTokenVerifier([]byte(secret))

	// Hosted platform when configured, local SQLite store otherwise.
	var platform Platform
	var local *LocalPlatform
	if base := os.Getenv("PLATFORM_URL"); base != "" {
		platform = NewHTTPPlatform(base, os.Getenv("PLATFORM_DEV_TOKEN"))
		log.Printf("using hosted session platform at %s", base)
	} else {
		local, err = OpenLocalPlatform(*dbPath, true)
		if err != nil {
			log.Fatalf("open local platform: %v", err)
		}
		defer local.Close()
		platform = local
		log.Printf("using local session platform at %s", *dbPath)
	}

	var ranking Ranking
	if api := os.Getenv("RANKING_API_URL"); api != "" {
		ranking = NewRankingClient(RankingConfig{
			APIURL:       api,
			AuthURL:      os.Getenv("RANKING_AUTH_URL"),
			AuthClientID: os.Getenv("RANKING_AUTH_CLIENT_ID"),
			AuthUsername: os.Getenv("RANKING_AUTH_USERNAME"),
			AuthPassword: os.Getenv("RANKING_AUTH_PASSWORD"),
		})
	} else {
		ranking = NoopRanking{}
		log.Printf("no ranking service configured, results will carry empty payloads")
	}

	syncq := NewSyncQueue(platform)
	defer syncq.Close()

	registry := NewRegistry(cfg, RoomDeps{
		Ranking:        ranking,
		Platform:       platform,
		Sync:           syncq,
		GameID:         os.Getenv("RANKING_GAME_ID"),
		Server:         os.Getenv("RANKING_SERVER"),
		RankingTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Run(ctx)

	gw := NewGateway(registry, verifier, os.Getenv("JOIN_BASE_URL"))
	mux := SetupRoutes(gw)
	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s, ticking every %s", cfg.Addr, cfg.TickInterval())
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	cancel()
	server.Close()
}
