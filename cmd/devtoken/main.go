// Command devtoken mints an access token for local development against a
// self-hosted backend that verifies tokens with SUPABASE_JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"wastechem.org/internal/auth"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	var (
		userID   = flag.String("user", "", "subject (user id); a random uuid when empty")
		email    = flag.String("email", "dev@example.com", "email claim")
		audience = flag.String("aud", "authenticated", "audience claim")
		ttl      = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	secret := os.Getenv("SUPABASE_JWT_SECRET")
	if secret == "" {
		log.Fatal("SUPABASE_JWT_SECRET is not set")
	}
	id := *userID
	if id == "" {
		id = uuid.NewString()
	}
	token, err := auth.GenerateToken(secret, auth.Identity{ID: id, Email: *email}, *audience, *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "user %s\n", id)
	fmt.Println(token)
}
