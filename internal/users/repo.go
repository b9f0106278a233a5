package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type User struct {
	ID          string `json:"id"`
	FirebaseUID string `json:"-"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
}

type UpsertUser struct {
	FirebaseUID string
	Email       string
	DisplayName string
}

// EnsureUser upserts the row for a firebase identity and returns it. New
// users default to the client role; role changes are an admin action and
// never happen here.
func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) (*User, error) {
	if u.FirebaseUID == "" {
		return nil, fmt.Errorf("firebase_uid required")
	}

	const q = `
insert into users (firebase_uid, email, display_name, role, updated_at)
values ($1, nullif($2,''), nullif($3,''), 'client', now())
on conflict (firebase_uid) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  updated_at = now()
returning id::text, firebase_uid, coalesce(email, ''), coalesce(display_name, ''), role;
`
	var out User
	if err := r.db.QueryRow(ctx, q, u.FirebaseUID, u.Email, u.DisplayName).
		Scan(&out.ID, &out.FirebaseUID, &out.Email, &out.DisplayName, &out.Role); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*User, error) {
	const q = `
select id::text, firebase_uid, coalesce(email, ''), coalesce(display_name, ''), role
from users
where id = $1::uuid;
`
	var out User
	err := r.db.QueryRow(ctx, q, id).
		Scan(&out.ID, &out.FirebaseUID, &out.Email, &out.DisplayName, &out.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}
