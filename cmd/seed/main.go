// Command seed fills the development database with fake marketplace data.
package main

import (
	"log"

	"foodbridge/internal/config"
	"foodbridge/internal/database"
	"foodbridge/internal/seed"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Run(db); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
