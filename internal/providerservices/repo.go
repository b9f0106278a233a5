package providerservices

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("service not found")
	ErrForbidden     = errors.New("caller does not own this service")
	ErrInvalidRate   = errors.New("rate must be positive")
	ErrInvalidWindow = errors.New("invalid availability window")
)

// Service is a listing a provider offers work under. Rate is minor
// currency units per hour.
type Service struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	RateAmount   int64     `json:"rate_amount"`
	RateCurrency string    `json:"rate_currency"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Window is a weekly availability slot. Day is 0=Sunday .. 6=Saturday;
// times are validated HH:mm with start strictly before end.
type Window struct {
	Day   int    `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w Window) Validate() error {
	if !ValidateDayOfWeek(w.Day) {
		return ErrInvalidWindow
	}
	if !ValidateTimeFormat(w.Start) || !ValidateTimeFormat(w.End) {
		return ErrInvalidWindow
	}
	if !IsStartBeforeEnd(w.Start, w.End) {
		return ErrInvalidWindow
	}
	return nil
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const serviceCols = `id::text, provider_id::text, title, coalesce(description, ''), rate_amount, rate_currency, active, created_at, updated_at`

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.ProviderID, &s.Title, &s.Description,
		&s.RateAmount, &s.RateCurrency, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Create(ctx context.Context, providerID, title, description string, rateAmount int64, rateCurrency string) (*Service, error) {
	if rateAmount <= 0 {
		return nil, ErrInvalidRate
	}

	const q = `
insert into provider_services (provider_id, title, description, rate_amount, rate_currency)
values ($1::uuid, $2, nullif($3, ''), $4, $5)
returning ` + serviceCols + `;
`
	return scanService(r.db.QueryRow(ctx, q, providerID, title, description, rateAmount, rateCurrency))
}

func (r *Repo) ListForProvider(ctx context.Context, providerID string) ([]Service, error) {
	const q = `
select ` + serviceCols + `
from provider_services
where provider_id = $1::uuid
order by created_at desc;
`
	rows, err := r.db.Query(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Service, 0, 8)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) SetActive(ctx context.Context, providerID, serviceID string, active bool) (*Service, error) {
	const q = `
update provider_services
set active = $3, updated_at = now()
where id = $1::uuid and provider_id = $2::uuid
returning ` + serviceCols + `;
`
	return scanService(r.db.QueryRow(ctx, q, serviceID, providerID, active))
}

// ReplaceWindows swaps the provider's weekly availability atomically. All
// windows are validated before any write.
func (r *Repo) ReplaceWindows(ctx context.Context, providerID string, windows []Window) error {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `delete from availability_windows where provider_id = $1::uuid;`, providerID); err != nil {
			return err
		}
		const ins = `
insert into availability_windows (provider_id, day, start_time, end_time)
values ($1::uuid, $2, $3, $4);
`
		for _, w := range windows {
			if _, err := tx.Exec(ctx, ins, providerID, w.Day, w.Start, w.End); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ListWindows(ctx context.Context, providerID string) ([]Window, error) {
	const q = `
select day, start_time, end_time
from availability_windows
where provider_id = $1::uuid
order by day, start_time;
`
	rows, err := r.db.Query(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Window, 0, 8)
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.Day, &w.Start, &w.End); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
