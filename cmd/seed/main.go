// Command seed creates two demo users with a short conversation and prints
// a token for each.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/auth"
	"github.com/Arjunan-lab/ChattingApp/internal/config"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

func main() {
	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	if cfg.StoreBackend == "" || cfg.StoreBackend == "memory" {
		logger.Fatal().Msg("seeding the memory backend is pointless, set STORE_BACKEND")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("store open failed")
	}
	defer db.Close()

	alice, err := db.CreateUser(ctx, "Alice", "alice@example.com")
	if err != nil {
		logger.Fatal().Err(err).Msg("create alice")
	}
	bob, err := db.CreateUser(ctx, "Bob", "bob@example.com")
	if err != nil {
		logger.Fatal().Err(err).Msg("create bob")
	}

	conversation := []struct {
		from, to *models.User
		text     string
	}{
		{alice, bob, "Hey Bob!"},
		{bob, alice, "Hi Alice, how are you?"},
		{alice, bob, "Great, thanks for asking."},
	}
	for _, c := range conversation {
		if _, err := db.AppendMessage(ctx, models.NewMessage(c.from.ID, models.Direct{To: c.to.ID}, c.text)); err != nil {
			logger.Fatal().Err(err).Msg("append message")
		}
	}

	jwt := auth.NewJWT(cfg.JWTSecret, 7*24*time.Hour)
	for _, u := range []*models.User{alice, bob} {
		tok, err := jwt.GenerateToken(u.ID)
		if err != nil {
			logger.Fatal().Err(err).Msg("sign token")
		}
		fmt.Printf("%-6s id=%s\n       token=%s\n", u.Name, u.ID, tok)
	}
	logger.Info().Int("messages", len(conversation)).Msg("seed complete")
}
