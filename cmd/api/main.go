package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/antoninobrosio/maxconverter/internal/database"
	"github.com/antoninobrosio/maxconverter/internal/server"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	dbpool, err := database.ConnectDB(connStr)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer dbpool.Close()

	ctx := context.Background()
	dbManager := database.NewPostgresDBManager(ctx, dbpool)

	router := server.SetupRoutes(server.NewObservationService(dbManager))

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", port), router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
