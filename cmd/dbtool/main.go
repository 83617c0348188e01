package main

import (
	"flag"
	"log"

	"github.com/Endgame-Tech/choma-sub014/internal/adapters/repositories"
	"github.com/Endgame-Tech/choma-sub014/internal/config"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/db"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	schemaOnly := flag.Bool("schema-only", false, "create tables without seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	dialect, err := repositories.ParseDialect(cfg.DBDriver)
	if err != nil {
		log.Fatal(err)
	}

	dsn := cfg.DatabaseURL
	if dialect == repositories.DialectSQLite {
		dsn = cfg.DBPath
	}

	conn, err := db.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	if *schemaOnly {
		return
	}

	log.Printf("Seeding database from %s...", cfg.SeedPath)
	if err := repositories.SeedFromJSON(conn, dialect, cfg.SeedPath); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")
}
