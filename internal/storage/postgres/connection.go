package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewConnection opens the database/sql connection used by the reporting
// stores. The request path uses pgx; this secondary connection keeps the
// aggregate queries off the transactional pool.
func NewConnection(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}
