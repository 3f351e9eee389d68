package main

import (
	"context"
	"log"

	"github.com/peerline/signaling/config"
	"github.com/peerline/signaling/internal/handlers"
	"github.com/peerline/signaling/internal/middleware"
	"github.com/peerline/signaling/internal/negotiation"
	"github.com/peerline/signaling/internal/presence"
	"github.com/peerline/signaling/internal/redis"
	"github.com/peerline/signaling/internal/relay"
	"github.com/peerline/signaling/internal/rooms"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to Redis
	rdb, err := redis.Connect(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	log.Println("Redis connection established")

	registry := rooms.NewRegistry()
	tracker := negotiation.NewTracker(cfg.NegotiationTimeout, func(a, b string) {
		log.Printf("Negotiation deadline expired for pair %s / %s", a, b)
	})
	store := presence.NewRedisStore(rdb)
	rly := relay.New(registry, tracker, store)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Room management API (authenticated)
	roomAPI := handlers.NewRoomAPI(rdb, store)
	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))

		// Create room (requires JWT)
		apiGroup.POST("/rooms", middleware.JWTAuth(cfg.JWTSecret), roomAPI.CreateRoom)

		// Get room info (public)
		apiGroup.GET("/rooms/:roomId", roomAPI.GetRoom)

		// Delete room (requires JWT, creator only)
		apiGroup.DELETE("/rooms/:roomId", middleware.JWTAuth(cfg.JWTSecret), roomAPI.DeleteRoom)
	}

	// WebSocket signaling endpoint; rooms are joined by message, not URL
	wsHandler := handlers.NewWebSocketHandler(rly)
	router.GET("/ws", wsHandler.HandleSignaling)

	// Start server
	log.Printf("Starting signaling server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
