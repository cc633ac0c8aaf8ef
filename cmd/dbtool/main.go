package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"rail-hazard-monitor/internal/adapters/repositories"
	"rail-hazard-monitor/internal/config"
	"rail-hazard-monitor/internal/platform/db"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	driver := flag.String("driver", config.Get("DB_DRIVER", db.DriverPostgres), "database driver: pgx or sqlite")
	seedPath := flag.String("seed", config.Get("SEED_PATH", "data/seeds/demo.json"), "seed file; empty skips seeding")
	flag.Parse()

	dsn := config.Get("DB_PATH", "data/app.db")
	if *driver == db.DriverPostgres {
		dsn = config.Get("DATABASE_URL", "")
		if strings.TrimSpace(dsn) == "" {
			log.Fatal("DATABASE_URL is required")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, *driver, dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	initAndSeed(ctx, conn, *driver, *seedPath)
}

func initAndSeed(ctx context.Context, conn *sql.DB, driver, seedPath string) {
	log.Printf("Initializing database schema driver=%s...", driver)
	initSchema := repositories.InitSchema
	if driver == db.DriverPostgres {
		initSchema = repositories.InitPostgresSchema
	}
	if err := initSchema(ctx, conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	if seedPath == "" {
		return
	}

	log.Println("Seeding database...")
	if err := repositories.SeedFromJSON(ctx, conn, driver, seedPath, time.Now()); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")
}
