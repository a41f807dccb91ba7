package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prepmate/internal/api"
	"prepmate/internal/app/service"
	"prepmate/internal/common/security"
	"prepmate/internal/domain/repository"
	"prepmate/internal/platform/cache"
	"prepmate/internal/platform/config"
	"prepmate/internal/platform/database"
	"prepmate/internal/platform/llm"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis
	cache.ConnectRedis()
	defer cache.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	articleRepo := repository.NewPgArticleRepository(database.DB)
	convoRepo := repository.NewPgConversationRepository(database.DB)

	// 6. Initialize Generation Gateway and lock
	gateway := llm.NewClient(
		config.AppConfig.LLMBaseURL,
		config.AppConfig.LLMAPIKey,
		config.AppConfig.LLMModel,
		config.AppConfig.LLMMaxTokens,
		config.AppConfig.LLMTimeout,
	)
	generationLock := cache.NewGenerationLock(
		cache.RDB,
		config.AppConfig.GenerationLockPrefix,
		config.AppConfig.GenerationLockTTL,
	)

	// 7. Initialize Services
	authService := service.NewAuthService(userRepo)
	problemService := service.NewProblemService(problemRepo)
	contentService := service.NewContentService(problemRepo, articleRepo, gateway, generationLock, config.AppConfig.MinDescriptionChars)
	mentorService := service.NewMentorService(convoRepo, gateway, config.AppConfig.ChatHistoryWindow)

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, problemService, contentService, mentorService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 150 * time.Second, // outlives streamed generation responses
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
