package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worklane/worklane-backend/internal/notifications"
)

var (
	ErrNotFound  = errors.New("message not found")
	ErrForbidden = errors.New("caller is not a party to this message")
	ErrEmptyBody = errors.New("message body required")
)

const EventMessage = "chat.message"

// Message is a directed message between two users. Content is immutable;
// the read flag only ever transitions false → true.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev notifications.Event)
}

type Repo struct {
	db     *pgxpool.Pool
	events Publisher
}

func NewRepo(db *pgxpool.Pool, events Publisher) *Repo {
	return &Repo{db: db, events: events}
}

func (r *Repo) Send(ctx context.Context, senderID, recipientID, body string) (*Message, error) {
	if body == "" {
		return nil, ErrEmptyBody
	}

	const q = `
insert into chat_messages (sender_id, recipient_id, body)
values ($1::uuid, $2::uuid, $3)
returning id::text, sender_id::text, recipient_id::text, body, read, created_at;
`
	var m Message
	err := r.db.QueryRow(ctx, q, senderID, recipientID, body).
		Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.Read, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.events.Publish(ctx, notifications.Event{
		Type:       EventMessage,
		EntityID:   m.ID,
		ActorID:    senderID,
		Recipients: []string{recipientID},
		Payload:    map[string]interface{}{"sender_id": senderID},
	})
	return &m, nil
}

// Conversation lists messages between two users in both directions,
// oldest first.
func (r *Repo) Conversation(ctx context.Context, userID, otherID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	const q = `
select id::text, sender_id::text, recipient_id::text, body, read, created_at
from chat_messages
where (sender_id = $1::uuid and recipient_id = $2::uuid)
   or (sender_id = $2::uuid and recipient_id = $1::uuid)
order by created_at
limit $3;
`
	rows, err := r.db.Query(ctx, q, userID, otherID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead sets the read flag; only the recipient may do so, and the flag
// never reverts. Marking an already-read message is a no-op.
func (r *Repo) MarkRead(ctx context.Context, userID, messageID string) (*Message, error) {
	const sel = `
select id::text, sender_id::text, recipient_id::text, body, read, created_at
from chat_messages
where id = $1::uuid;
`
	var m Message
	err := r.db.QueryRow(ctx, sel, messageID).
		Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.Read, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if m.RecipientID != userID {
		return nil, ErrForbidden
	}
	if m.Read {
		return &m, nil
	}

	const upd = `update chat_messages set read = true where id = $1::uuid and read = false;`
	if _, err := r.db.Exec(ctx, upd, messageID); err != nil {
		return nil, err
	}
	m.Read = true
	return &m, nil
}

func (r *Repo) UnreadCount(ctx context.Context, userID string) (int, error) {
	const q = `select count(*) from chat_messages where recipient_id = $1::uuid and read = false;`
	var n int
	if err := r.db.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
