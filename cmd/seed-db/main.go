// Command seed-db prepares a fresh database: it runs the schema migration
// and registers an API key for the server's authenticated endpoints.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/milsabores/ventas/internal/domain/auth"
	"github.com/milsabores/ventas/internal/storage/postgres"
)

const insertAPIKeySQL = `INSERT INTO api_keys (key_hash, name, scopes)
	VALUES ($1, $2, $3)
	ON CONFLICT (key_hash) DO UPDATE SET active = TRUE`

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyName   string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or VENTAS_SEED_API_KEY env)")
	flag.StringVar(&apiKeyName, "api-key-name", "admin", "label for the seeded API key")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or VENTAS_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("VENTAS_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or VENTAS_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("VENTAS_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyName, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, name, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	slog.Info("schema migrated")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, insertAPIKeySQL, hash, name, []string{auth.ScopeOrdersWrite}); err != nil {
		return errors.Wrap(err, "insert api key")
	}
	slog.Info("api key seeded", slog.String("name", name))

	return nil
}
