package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/geocontrol/parental-api/config"
	"github.com/geocontrol/parental-api/pkg/helpers"
)

// Seeds a demo parent account so a fresh install has something to log in with.
// Override the defaults with SEED_EMAIL / SEED_USERNAME / SEED_PASSWORD.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := envOr("SEED_EMAIL", "parent@example.com")
	username := envOr("SEED_USERNAME", "demo_parent")
	password := envOr("SEED_PASSWORD", "changeme123")

	hasher := helpers.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (email, username, full_name, hashed_password, is_active)
		VALUES ($1, NULLIF($2, ''), $3, $4, TRUE)
		ON CONFLICT (email) DO UPDATE SET updated_at = now()
		RETURNING id
	`, email, username, "Demo Parent", hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%s email=%s username=%s password=%s\n", id, email, username, password)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
