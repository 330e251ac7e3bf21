package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"sqlforge/internal/config"
	"sqlforge/internal/database"
	"sqlforge/internal/handlers"
	"sqlforge/internal/middlewares"
	"sqlforge/internal/repositories"
	"sqlforge/internal/routes"
	"sqlforge/internal/services"
)

// NewServer wires the whole service and returns the HTTP server plus a
// cleanup func to run after shutdown (closes the connection pool).
func NewServer() (*http.Server, func()) {
	cfg := config.Load()

	// A failed database connection is not fatal: schema upload and SQL
	// generation keep working, execution endpoints answer 503.
	pool, err := database.Connect(cfg.DB)
	if err != nil {
		log.Printf("WARNING: could not establish database connection pool: %v", err)
		log.Println("SQL execution endpoints will return 503 until the service restarts with a reachable database")
		pool = nil
	} else if err := database.RunMigrations(pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	schemaRepo, err := repositories.NewSchemaRepository(cfg.SchemaDir)
	if err != nil {
		log.Fatalf("failed to prepare schema upload directory: %v", err)
	}

	var historyRepo *repositories.QueryHistoryRepository
	if pool != nil {
		historyRepo = repositories.NewQueryHistoryRepository(pool)
	}

	// Dependency injection
	schemaService := services.NewSchemaService(schemaRepo)
	geminiService := services.NewGeminiService(cfg.Gemini)
	queryService := services.NewQueryService(pool, historyRepo, cfg.ExecuteReadOnly)

	schemaHandler := handlers.NewSchemaHandler(schemaService)
	queryHandler := handlers.NewQueryHandler(schemaService, geminiService, queryService)

	// Initialize Gin router
	router := gin.Default()
	router.Use(middlewares.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))
	routes.RegisterRoutes(router, schemaHandler, queryHandler)

	// Generation requests can hold the connection for up to three 60s
	// upstream attempts plus backoff, so the write timeout must cover
	// the worst case.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 4 * time.Minute,
	}

	cleanup := func() {
		if pool != nil {
			pool.Close()
			log.Println("Database connection pool closed")
		}
	}

	return server, cleanup
}
