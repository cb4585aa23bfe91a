package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-store/cmd"
	"chat-store/internal/api"
	"chat-store/internal/database"
	"chat-store/internal/service"
	"chat-store/internal/store"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL      string        `env:"DATABASE_URL,notEmpty,required"`
	APIKey           string        `env:"API_KEY,notEmpty,required"`
	APIPort          string        `env:"API_PORT" envDefault:"8000"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envDefault:"*"`
	RateLimitEnabled bool          `env:"RATE_LIMITER_ENABLED" envDefault:"true"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
}

func main() {
	log.Println("Starting chat-store API server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	if len(cfg.APIKey) < 8 {
		log.Fatalf("API_KEY must be at least 8 characters long")
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sessionStore := store.NewSessionStore(db)
	messageStore := store.NewMessageStore(db)
	sessionService := service.NewSessionService(sessionStore)
	messageService := service.NewMessageService(messageStore, sessionStore)

	limits := api.RateLimits{}
	if cfg.RateLimitEnabled {
		limits = api.DefaultRateLimits()
	}
	apiHandler := api.NewChatStoreService(sessionService, messageService, limits)

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", api.HealthHandler(time.Now()))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.BearerAuth(cfg.APIKey))
		apiHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
