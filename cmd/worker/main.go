package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/worklane/worklane-backend/config"
	"github.com/worklane/worklane-backend/internal/bootstrap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := bootstrap.OpenDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if len(os.Args) > 1 && os.Args[1] == "once" {
		// one-shot run for operators and cron-less environments
		RunReconcile(ctx, db)
		return
	}

	sched := NewScheduler(db)
	sched.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("worker shutting down")
}
