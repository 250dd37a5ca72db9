// Command seed provisions the administrator and a set of demo accounts in a
// migrated database. Accounts that already exist are left untouched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"datareg.org/internal/auth"
	"datareg.org/internal/blob"
	"datareg.org/internal/config"
	"datareg.org/internal/registry"
	"datareg.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	demo := flag.Bool("demo", false, "Also create one demo user per non-admin role")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.UseMemory() {
		log.Fatal("seed needs DATAREG_DATABASE_DSN")
	}
	if cfg.Seed.AdminPassword == "" {
		log.Fatal("seed needs DATAREG_SEED_ADMIN_PASSWORD")
	}

	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	// the seed never touches materials
	svc, err := registry.NewService(store, blob.NewMemory())
	if err != nil {
		log.Fatalf("registry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := []registry.NewUser{{
		Username: cfg.Seed.AdminUsername,
		Password: cfg.Seed.AdminPassword,
		RealName: "Administrator",
		Role:     auth.RoleAdmin,
	}}
	if *demo {
		orgs, err := svc.ListOrganizations(ctx)
		if err != nil {
			log.Fatalf("list organizations: %v", err)
		}
		var orgID int64
		if len(orgs) > 0 {
			orgID = orgs[0].ID
		}
		for _, role := range auth.Roles() {
			if role == auth.RoleAdmin {
				continue
			}
			u := registry.NewUser{
				Username: "demo_" + string(role),
				Password: cfg.Seed.AdminPassword,
				Role:     role,
			}
			if role == auth.RoleDataHolder {
				u.OrganizationID = orgID
			}
			users = append(users, u)
		}
	}

	for _, in := range users {
		u, err := svc.ProvisionUser(ctx, in)
		switch {
		case errors.Is(err, registry.ErrConflict):
			fmt.Printf("exists  %s\n", in.Username)
		case err != nil:
			log.Fatalf("provision %s: %v", in.Username, err)
		default:
			fmt.Printf("created %s (id=%d, role=%s)\n", u.Username, u.ID, u.Role)
		}
	}
}
