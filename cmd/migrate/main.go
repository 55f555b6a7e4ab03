package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"

	"royaltyhub.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = pflag.String("dsn", os.Getenv("ROYALTYHUB_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = pflag.String("migrations", "", "directory of SQL migrations (default: embedded)")
		seedsPath      = pflag.String("seeds", "", "directory of SQL seeds (default: embedded)")
		timeout        = pflag.Duration("timeout", 30*time.Second, "overall deadline")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|seed|status")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via --dsn or ROYALTYHUB_PG_DSN")
	}
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, source(*migrationsPath, migrate.Migrations()), source(*seedsPath, migrate.Seeds()))

	switch pflag.Arg(0) {
	case "up":
		var n int
		if n, err = mgr.Up(ctx); err == nil {
			log.Printf("applied %d migration(s)", n)
		}
	case "down":
		var name string
		if name, err = mgr.Down(ctx); err == nil {
			log.Printf("rolled back %s", name)
		}
	case "seed":
		var n int
		if n, err = mgr.Seed(ctx); err == nil {
			log.Printf("applied %d seed file(s)", n)
		}
	case "status":
		var history []migrate.Record
		history, err = mgr.Status(ctx)
		for _, rec := range history {
			fmt.Println(rec)
		}
	default:
		log.Fatalf("unknown command %q", pflag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", pflag.Arg(0), err)
	}
}

func source(dir string, embedded fs.FS) fs.FS {
	if dir == "" {
		return embedded
	}
	return os.DirFS(dir)
}
