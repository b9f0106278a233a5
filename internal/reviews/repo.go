package reviews

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	opdomain "github.com/worklane/worklane-backend/internal/operations/domain"
)

var (
	ErrNotFound        = errors.New("operation not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrNotCompleted    = errors.New("operation is not completed")
	ErrNotParticipant  = errors.New("caller is not a party to this operation")
	ErrAlreadyReviewed = errors.New("operation already reviewed by this user")
)

// Review is feedback on a completed operation. Immutable once created.
type Review struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	RaterID     string    `json:"rater_id"`
	TargetID    string    `json:"target_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary aggregates the reviews received by a user.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Create records a review. The operation must be completed, the rater must
// be one of its parties, and the target is always the other party. One
// review per (operation, rater).
func (r *Repo) Create(ctx context.Context, raterID, operationID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	const opQ = `
select client_id::text, coalesce(provider_id::text, ''), status
from operations
where id = $1::uuid;
`
	var clientID, providerID string
	var status opdomain.OperationStatus
	if err := r.db.QueryRow(ctx, opQ, operationID).Scan(&clientID, &providerID, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status != opdomain.StatusCompleted {
		return nil, ErrNotCompleted
	}

	var targetID string
	switch raterID {
	case clientID:
		targetID = providerID
	case providerID:
		targetID = clientID
	default:
		return nil, ErrNotParticipant
	}

	const q = `
insert into reviews (operation_id, rater_id, target_id, rating, comment)
values ($1::uuid, $2::uuid, $3::uuid, $4, nullif($5, ''))
returning id::text, operation_id::text, rater_id::text, target_id::text, rating, coalesce(comment, ''), created_at;
`
	var rev Review
	err := r.db.QueryRow(ctx, q, operationID, raterID, targetID, rating, comment).
		Scan(&rev.ID, &rev.OperationID, &rev.RaterID, &rev.TargetID, &rev.Rating, &rev.Comment, &rev.CreatedAt)
	if err != nil {
		// unique (operation_id, rater_id)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}
	return &rev, nil
}

func (r *Repo) ListForUser(ctx context.Context, targetID string) ([]Review, error) {
	const q = `
select id::text, operation_id::text, rater_id::text, target_id::text, rating, coalesce(comment, ''), created_at
from reviews
where target_id = $1::uuid
order by created_at desc;
`
	rows, err := r.db.Query(ctx, q, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Review, 0, 16)
	for rows.Next() {
		var rev Review
		if err := rows.Scan(&rev.ID, &rev.OperationID, &rev.RaterID, &rev.TargetID,
			&rev.Rating, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (r *Repo) SummaryForUser(ctx context.Context, targetID string) (*Summary, error) {
	const q = `
select count(*), coalesce(avg(rating), 0)
from reviews
where target_id = $1::uuid;
`
	var s Summary
	if err := r.db.QueryRow(ctx, q, targetID).Scan(&s.Count, &s.Average); err != nil {
		return nil, err
	}
	return &s, nil
}
