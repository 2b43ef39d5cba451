package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"wastechem.org/internal/datasvc/sqlstore"
	"wastechem.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	var (
		driver         = flag.String("driver", envOr("WASTECHEM_DB_DRIVER", "sqlite3"), "database/sql driver: pgx or sqlite3")
		dsn            = flag.String("dsn", os.Getenv("WASTECHEM_DB_DSN"), "database DSN")
		migrationsPath = flag.String("dir", "", "read sql/<dialect> and seeds/ from this directory instead of the embedded files")
		timeout        = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or WASTECHEM_DB_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := sqlstore.Open(*driver, *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	var opts []migrate.Option
	if *migrationsPath != "" {
		opts = append(opts, migrate.WithFS(os.DirFS(*migrationsPath)))
	}
	mgr, err := migrate.NewManager(store.DB(), store.Dialect().Name, opts...)
	if err != nil {
		log.Fatal(err)
	}

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
