package main

import (
	"log"
	"log/slog"

	"qrmenu-service/internal/config"
	"qrmenu-service/internal/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting database migration...")

	dsn := cfg.Database.URL
	if dsn == "" {
		dsn = database.BuildDSN(
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
		)
	}

	db, err := database.NewPostgresConnection(dsn)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	slog.Info("Database connection established")

	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	slog.Info("Database migration completed successfully!")
}
