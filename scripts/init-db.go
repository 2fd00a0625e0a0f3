package main

import (
	"log"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/migrations"
)

// Standalone database bootstrap: migrate the schema and seed default data
// without starting the server.
func main() {
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	log.Println("Database initialized")
}
