package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	escrowdomain "github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/operations/domain"
)

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

const operationCols = `id::text, client_id::text, provider_id::text, title, coalesce(description, ''), budget_amount, budget_currency, status, created_at, updated_at`

func scanOperation(row pgx.Row) (*domain.Operation, error) {
	var op domain.Operation
	var provider *string
	err := row.Scan(&op.ID, &op.ClientID, &provider, &op.Title, &op.Description,
		&op.BudgetAmount, &op.BudgetCurrency, &op.Status, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	op.Provider = domain.AssignmentFrom(provider)
	return &op, nil
}

func (r *Repo) OperationByID(ctx context.Context, id string) (*domain.Operation, error) {
	const q = `select ` + operationCols + ` from operations where id = $1::uuid;`
	return scanOperation(r.db.QueryRow(ctx, q, id))
}

func (r *Repo) ListForUser(ctx context.Context, userID string) ([]domain.Operation, error) {
	const q = `
select ` + operationCols + `
from operations
where client_id = $1::uuid or provider_id = $1::uuid
order by created_at desc;
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Operation, 0, 16)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *op)
	}
	return out, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) OperationForUpdate(ctx context.Context, id string) (*domain.Operation, error) {
	const q = `select ` + operationCols + ` from operations where id = $1::uuid for update;`
	return scanOperation(t.tx.QueryRow(ctx, q, id))
}

func (t *pgTx) InsertOperation(ctx context.Context, op *domain.Operation) error {
	const q = `
insert into operations (id, client_id, provider_id, title, description, budget_amount, budget_currency, status, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::uuid, $4, nullif($5, ''), $6, $7, $8, $9, $10);
`
	_, err := t.tx.Exec(ctx, q, op.ID, op.ClientID, op.Provider.Ptr(), op.Title, op.Description,
		op.BudgetAmount, op.BudgetCurrency, op.Status, op.CreatedAt, op.UpdatedAt)
	return err
}

func (t *pgTx) UpdateOperation(ctx context.Context, op *domain.Operation) error {
	const q = `
update operations
set provider_id = $2::uuid, status = $3, updated_at = $4
where id = $1::uuid;
`
	ct, err := t.tx.Exec(ctx, q, op.ID, op.Provider.Ptr(), op.Status, op.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) EscrowsForOperation(ctx context.Context, operationID string) ([]*escrowdomain.Escrow, error) {
	const q = `
select id::text, project_id::text, client_id::text, amount, released_amount, currency, disputed, refunded, status, created_at, updated_at
from escrows
where project_id = $1::uuid
order by created_at
for update;
`
	rows, err := t.tx.Query(ctx, q, operationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*escrowdomain.Escrow
	for rows.Next() {
		var e escrowdomain.Escrow
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ClientID, &e.Amount, &e.ReleasedAmount,
			&e.Currency, &e.Disputed, &e.Refunded, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateEscrow(ctx context.Context, e *escrowdomain.Escrow) error {
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
		return escrowdomain.ErrNotFound
	}
	return nil
}

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
