package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rongwang/staff-scheduler/internal/api"
	"github.com/rongwang/staff-scheduler/internal/config"
	"github.com/rongwang/staff-scheduler/internal/repository"
	"github.com/rongwang/staff-scheduler/internal/service"
	"github.com/rongwang/staff-scheduler/internal/utils"
)

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	// Load configuration
	cfg := config.LoadConfig()
	logger := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warnf("Failed to read .env: %v", envErr)
	}
	if cfg.Auth.UsesDefaultSecret() {
		logger.Warnf("JWT_SECRET is not set; using the development secret")
	}

	// Set up database connection and run migrations
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Errorf("Failed to set up database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Audit and notifications always go to the database; Redis is an optional extra sink
	var emitter service.Emitter = service.NewStoreEmitter(repo, logger)
	if cfg.Events.RedisURL != "" {
		publisher, err := service.NewRedisPublisher(cfg.Events.RedisURL, logger)
		if err != nil {
			logger.Errorf("Failed to configure Redis publisher: %v", err)
			os.Exit(1)
		}
		defer publisher.Close()
		emitter = service.MultiEmitter{emitter, publisher}
		logger.Infof("Publishing events to Redis")
	}

	// Create service
	svc := service.NewDefaultService(repo, emitter, logger, cfg)

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = svc.SeedDefaults(seedCtx)
	cancel()
	if err != nil {
		logger.Errorf("Failed to seed defaults: %v", err)
		os.Exit(1)
	}

	// Create API handler
	handler := api.NewHandler(svc, logger)

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	// Add middleware for JWT secret
	router.Use(api.JWTSecretMiddleware(cfg.Auth.JWTSecret))

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Errorf("Failed to start server: %v", err)
		os.Exit(1)
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}
