// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool. It stays nil when ConnectDB is
// never called, and every persist helper treats that as "persistence
// disabled".
var DB *pgxpool.Pool

// ConnectDB opens the pgx pool from the POSTGRES_USER/POSTGRES_PASSWORD
// and PG_HOST/PG_PORT/PG_DATABASE env vars and verifies it with a ping.
func ConnectDB() {
	host := os.Getenv("PG_HOST")
	dbName := os.Getenv("PG_DATABASE")
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		os.Getenv("PG_PORT"),
		dbName,
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("unable to parse pgx config: %v", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Fatalf("unable to create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	log.Printf("Connected to database %q on %s", dbName, host)
}
