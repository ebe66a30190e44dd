/*
 * file: main.go
 * package: main
 * description:
 *     This file initializes the application by setting up dependencies, configuring the database,
 *     establishing API routes, and launching the web server. It follows a dependency injection
 *     pattern to wire together components, promoting a decoupled and testable architecture.
 */

package main

import (
	"log"
	"net/http"
	"time"

	"github.com/fiveinarow/server/internal/adapters/db"
	"github.com/fiveinarow/server/internal/adapters/handlers"
	"github.com/fiveinarow/server/internal/config"
	"github.com/fiveinarow/server/internal/core/services"
	"github.com/fiveinarow/server/internal/infra/repository"
)

/*
 * main is the entry point of the application.
 *
 * This function performs the following tasks:
 *   - Loads configuration from the environment.
 *   - Initializes the database connection pool and migrates the schema.
 *   - Sets up repositories, services, and the Hub (dependency injection).
 *   - Configures HTTP handlers and registers API routes.
 *   - Creates and starts the HTTP server with timeouts and CORS middleware.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - None.
 */
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: configuration error: %v", err)
	}

	// Database Initialization
	dbConn, err := db.InitializeDatabase(cfg)
	if err != nil {
		log.Fatalf("FATAL: Database initialization failed: %v", err)
	}
	log.Println("SUCCESS: Database connection pool established.")

	// Dependency Injection
	userRepo := repository.NewGormUserRepository(dbConn)
	sessionRepo := repository.NewGormRefreshSessionRepository(dbConn)

	hub := services.NewHub()
	rooms := services.NewRoomService()

	authService := services.NewAuthService(
		userRepo, sessionRepo, cfg.JWTSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.RefreshTokenRotateAfter,
	)
	authService.SetKickHook(hub.Kick)

	// Handler & Router Configuration
	authHandler := handlers.NewAuthHandler(authService)
	wsHandler := handlers.NewWebSocketHandler(hub, rooms, authService)

	router := http.NewServeMux()
	router.HandleFunc("/healthz", handlers.Healthz)
	router.HandleFunc("/api/v1/auth/register", authHandler.Register)
	router.HandleFunc("/api/v1/auth/login", authHandler.Login)
	router.HandleFunc("/api/v1/auth/refresh", authHandler.Refresh)
	router.HandleFunc("/api/v1/auth/me", authHandler.Me)
	router.HandleFunc("/api/v1/auth/logout", authHandler.Logout)
	router.HandleFunc("/ws", wsHandler.HandleConnection)

	// Attach CORS middleware
	corsHandler := corsMiddleware(router)

	// HTTP Server Configuration & Launch
	server := &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      corsHandler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("INFO: HTTP server starting on %s...", cfg.BindAddr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("FATAL: Could not start server: %v", err)
	}
}

/*
 * corsMiddleware adds CORS (Cross-Origin Resource Sharing) headers to HTTP responses.
 *
 * Parameters:
 *   - next (http.Handler): The next handler in the chain.
 *
 * Returns:
 *   - http.Handler: A wrapped handler that applies CORS headers before invoking the next handler.
 */
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all origins (can be restricted)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
