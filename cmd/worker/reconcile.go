package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	db *pgxpool.Pool
}

func NewScheduler(db *pgxpool.Pool) *Scheduler {
	return &Scheduler{db: db}
}

// Start schedules the nightly reconciliation at 3:00 AM.
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc("0 0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		RunReconcile(ctx, s.db)
	})
	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (reconciliation nightly at 3:00AM)")
	c.Start()
}

// RunReconcile purges expired release idempotency keys and audits the
// escrow funds invariants. Violations are logged for operator follow-up;
// the worker never mutates escrow state.
func RunReconcile(ctx context.Context, db *pgxpool.Pool) {
	log.Println("Reconciliation started (purge + audit)...")

	const purgeQ = `delete from escrow_releases where expires_at < now();`
	ct, err := db.Exec(ctx, purgeQ)
	if err != nil {
		log.Printf("purge expired release keys: %v", err)
	} else {
		log.Printf("purged %d expired release keys", ct.RowsAffected())
	}

	const auditQ = `
select id::text, amount, released_amount, status
from escrows
where released_amount < 0
   or released_amount > amount
   or status <> case
        when refunded then 'refunded'
        when released_amount = amount then 'fully_released'
        when disputed then 'disputed'
        when released_amount > 0 then 'partially_released'
        else 'pending'
      end;
`
	rows, err := db.Query(ctx, auditQ)
	if err != nil {
		log.Printf("audit query: %v", err)
		return
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var id, status string
		var amount, released int64
		if err := rows.Scan(&id, &amount, &released, &status); err != nil {
			log.Printf("audit scan: %v", err)
			return
		}
		violations++
		log.Printf("AUDIT VIOLATION escrow=%s amount=%d released=%d status=%s", id, amount, released, status)
	}
	if err := rows.Err(); err != nil {
		log.Printf("audit rows: %v", err)
		return
	}

	log.Printf("Reconciliation finished (%d violations)", violations)
}
