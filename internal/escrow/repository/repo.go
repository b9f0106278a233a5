package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worklane/worklane-backend/internal/escrow/domain"
)

// Repo is the postgres-backed escrow store. Mutations run through InTx,
// which locks the escrow row with SELECT ... FOR UPDATE so concurrent
// releases on the same escrow serialize at the database.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
	return mapPgError(err)
}

const escrowCols = `id::text, project_id::text, client_id::text, amount, released_amount, currency, disputed, refunded, status, created_at, updated_at`

func scanEscrow(row pgx.Row) (*domain.Escrow, error) {
	var e domain.Escrow
	err := row.Scan(&e.ID, &e.ProjectID, &e.ClientID, &e.Amount, &e.ReleasedAmount,
		&e.Currency, &e.Disputed, &e.Refunded, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repo) EscrowByID(ctx context.Context, id string) (*domain.Escrow, error) {
	const q = `select ` + escrowCols + ` from escrows where id = $1::uuid;`
	return scanEscrow(r.db.QueryRow(ctx, q, id))
}

func (r *Repo) EscrowForProject(ctx context.Context, projectID string) (*domain.Escrow, error) {
	const q = `
select ` + escrowCols + `
from escrows
where project_id = $1::uuid
order by created_at desc
limit 1;
`
	return scanEscrow(r.db.QueryRow(ctx, q, projectID))
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) EscrowForUpdate(ctx context.Context, id string) (*domain.Escrow, error) {
	const q = `select ` + escrowCols + ` from escrows where id = $1::uuid for update;`
	return scanEscrow(t.tx.QueryRow(ctx, q, id))
}

func (t *pgTx) ActiveEscrowForProject(ctx context.Context, projectID string) (*domain.Escrow, error) {
	const q = `
select ` + escrowCols + `
from escrows
where project_id = $1::uuid and status not in ('fully_released', 'refunded')
for update;
`
	e, err := scanEscrow(t.tx.QueryRow(ctx, q, projectID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func (t *pgTx) InsertEscrow(ctx context.Context, e *domain.Escrow) error {
	const q = `
insert into escrows (id, project_id, client_id, amount, released_amount, currency, disputed, refunded, status, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := t.tx.Exec(ctx, q, e.ID, e.ProjectID, e.ClientID, e.Amount, e.ReleasedAmount,
		e.Currency, e.Disputed, e.Refunded, e.Status, e.CreatedAt, e.UpdatedAt)

	// unique partial index on active escrows per project
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateEscrow
	}
	return err
}

func (t *pgTx) UpdateEscrow(ctx context.Context, e *domain.Escrow) error {
	const q = `
update escrows
set released_amount = $2, disputed = $3, refunded = $4, status = $5, updated_at = $6
where id = $1::uuid;
`
	ct, err := t.tx.Exec(ctx, q, e.ID, e.ReleasedAmount, e.Disputed, e.Refunded, e.Status, e.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) Operation(ctx context.Context, id string) (*domain.OperationState, error) {
	const q = `
select id::text, client_id::text, coalesce(provider_id::text, ''), status, budget_currency
from operations
where id = $1::uuid;
`
	var op domain.OperationState
	err := t.tx.QueryRow(ctx, q, id).Scan(&op.ID, &op.ClientID, &op.ProviderID, &op.Status, &op.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (t *pgTx) ReleaseByRequestID(ctx context.Context, escrowID, requestID string) (*domain.Release, error) {
	const q = `
select id::text, escrow_id::text, request_id, actor_id::text, amount, coalesce(reason, ''), created_at, expires_at
from escrow_releases
where escrow_id = $1::uuid and request_id = $2;
`
	var rel domain.Release
	err := t.tx.QueryRow(ctx, q, escrowID, requestID).Scan(&rel.ID, &rel.EscrowID, &rel.RequestID,
		&rel.ActorID, &rel.Amount, &rel.Reason, &rel.CreatedAt, &rel.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

func (t *pgTx) InsertRelease(ctx context.Context, rel *domain.Release) error {
	const q = `
insert into escrow_releases (id, escrow_id, request_id, actor_id, amount, reason, created_at, expires_at)
values ($1::uuid, $2::uuid, $3, $4::uuid, $5, nullif($6, ''), $7, $8);
`
	_, err := t.tx.Exec(ctx, q, rel.ID, rel.EscrowID, rel.RequestID, rel.ActorID,
		rel.Amount, rel.Reason, rel.CreatedAt, rel.ExpiresAt)

	// unique (escrow_id, request_id): a concurrent replay raced us; surface
	// as a retryable conflict so the retry observes the stored release.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrConflictRetry
	}
	return err
}

// mapPgError converts postgres serialization and deadlock failures into the
// retryable conflict error.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return domain.ErrConflictRetry
		}
	}
	return err
}
