package main

import (
	"context"
	"log"

	"github.com/worklane/worklane-backend/config"
	"github.com/worklane/worklane-backend/internal/auth"
	"github.com/worklane/worklane-backend/internal/bootstrap"
	"github.com/worklane/worklane-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	db, err := bootstrap.OpenDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	statsDB, err := postgres.NewConnection(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("stats db: %v", err)
	}
	defer statsDB.Close()

	deps := bootstrap.RouterDeps{
		ServiceName:  "worklane-backend",
		Version:      cfg.App.Version,
		DB:           db,
		StatsDB:      statsDB,
		Redis:        rdb,
		RateLimitRPS: 50,
	}

	if cfg.Firebase.CredentialsPath != "" {
		authClient, err := auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			log.Fatalf("firebase: %v", err)
		}
		deps.AuthClient = authClient
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set, using X-User-Id header auth (development)")
	}

	r := bootstrap.BuildRouter(deps)

	addr := ":" + cfg.Server.Port
	log.Printf("listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
