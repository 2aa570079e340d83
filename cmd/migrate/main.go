package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/migrate"
	"bizadmin.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("BIZADMIN_DATABASE_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "", "directory of SQL migrations (defaults to the bundled ones)")
		seedsPath      = flag.String("seeds", "", "directory of SQL seeds (defaults to the bundled ones)")
		orgName        = flag.String("org", "Operators", "bootstrap: organization of the service admin")
		email          = flag.String("email", os.Getenv("BIZADMIN_BOOTSTRAP_EMAIL"), "bootstrap: service admin email")
		password       = flag.String("password", os.Getenv("BIZADMIN_BOOTSTRAP_PASSWORD"), "bootstrap: service admin password")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or BIZADMIN_DATABASE_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|bootstrap]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), dirOr(*migrationsPath, migrate.Migrations()), dirOr(*seedsPath, migrate.Seeds()))

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var (
			applied []migrate.Applied
			pending []string
		)
		applied, err = mgr.Status(ctx)
		if err == nil {
			pending, err = mgr.Pending(ctx)
		}
		if err == nil {
			for _, a := range applied {
				fmt.Printf("applied  %s  %s\n", a.AppliedAt.Format(time.RFC3339), a.Name)
			}
			for _, name := range pending {
				fmt.Printf("pending  %s\n", name)
			}
		}
	case "bootstrap":
		if *password == "" {
			log.Fatal("bootstrap needs -password or BIZADMIN_BOOTSTRAP_PASSWORD")
		}
		var console *auth.ConsoleService
		console, err = auth.NewConsoleService(store)
		if err != nil {
			break
		}
		var (
			user auth.User
			org  auth.Organization
		)
		user, org, err = console.Bootstrap(ctx, *orgName, *email, *password)
		if err == nil {
			fmt.Printf("service admin %s (%s) in %s (%s)\n", user.Email, user.ID, org.Name, org.ID)
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func dirOr(path string, bundled fs.FS) fs.FS {
	if path == "" {
		return bundled
	}
	return os.DirFS(path)
}
