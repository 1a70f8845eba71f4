// Command token mints a bearer token for a user id using JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Arjunan-lab/ChattingApp/internal/auth"
	"github.com/Arjunan-lab/ChattingApp/internal/config"
)

func main() {
	userID := flag.String("user", "", "User id to put in the token")
	ttl := flag.Duration("ttl", 0, "Token lifetime (default TOKEN_TTL)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -user <user-id> [-ttl 24h]")
		os.Exit(1)
	}

	cfg := config.Load()
	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tok, err := auth.NewJWT(cfg.JWTSecret, lifetime).GenerateToken(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
