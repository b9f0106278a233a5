package postgres

import (
	"context"
	"database/sql"
)

// PlatformStats is the admin dashboard aggregate: user counts by role,
// operation counts by status, and escrow money totals in minor units.
type PlatformStats struct {
	UsersByRole        map[string]int64 `json:"users_by_role"`
	OperationsByStatus map[string]int64 `json:"operations_by_status"`
	EscrowHeldTotal    int64            `json:"escrow_held_total"`
	EscrowReleased     int64            `json:"escrow_released_total"`
	EscrowRefunded     int64            `json:"escrow_refunded_total"`
}

type StatsStore struct {
	db *sql.DB
}

func NewStatsStore(db *sql.DB) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{
		UsersByRole:        make(map[string]int64),
		OperationsByStatus: make(map[string]int64),
	}

	const usersQ = `SELECT role, COUNT(*) FROM users GROUP BY role`
	rows, err := s.db.QueryContext(ctx, usersQ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		stats.UsersByRole[role] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const opsQ = `SELECT status, COUNT(*) FROM operations GROUP BY status`
	opRows, err := s.db.QueryContext(ctx, opsQ)
	if err != nil {
		return nil, err
	}
	defer opRows.Close()
	for opRows.Next() {
		var status string
		var n int64
		if err := opRows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.OperationsByStatus[status] = n
	}
	if err := opRows.Err(); err != nil {
		return nil, err
	}

	const escrowQ = `
SELECT
  COALESCE(SUM(amount), 0),
  COALESCE(SUM(released_amount), 0),
  COALESCE(SUM(CASE WHEN refunded THEN amount - released_amount ELSE 0 END), 0)
FROM escrows`
	if err := s.db.QueryRowContext(ctx, escrowQ).
		Scan(&stats.EscrowHeldTotal, &stats.EscrowReleased, &stats.EscrowRefunded); err != nil {
		return nil, err
	}

	return stats, nil
}
