//go:build integration

package store

import (
	"context"
	"os"
	"testing"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL_TEST")
	if url == "" {
		t.Skip("DATABASE_URL_TEST not set")
	}
	ctx := context.Background()
	if err := RunMigrations(ctx, url); err != nil {
		t.Fatal(err)
	}
	// Running twice must be a no-op.
	if err := RunMigrations(ctx, url); err != nil {
		t.Fatal(err)
	}
	s, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.pool.Exec(ctx, `TRUNCATE messages, users`); err != nil {
		t.Fatal(err)
	}
	testDataStore(t, s)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL_TEST")
	if url == "" {
		t.Skip("REDIS_URL_TEST not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		t.Fatal(err)
	}
	testDataStore(t, s)
}
