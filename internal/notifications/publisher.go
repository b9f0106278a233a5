package notifications

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventsChannel     = "notify:events"
	userChannelPrefix = "notify:user:" // per-recipient channel: notify:user:{user_id}
)

// Event is a fire-and-forget lifecycle notification. Recipients lists the
// user ids whose per-user channels also receive the event.
type Event struct {
	Type       string                 `json:"type"`
	EntityID   string                 `json:"entity_id"`
	ActorID    string                 `json:"actor_id,omitempty"`
	Recipients []string               `json:"-"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	At         time.Time              `json:"at"`
}

// Publisher fans lifecycle events out over Redis pub/sub. Delivery is
// best-effort: failures are logged, never propagated to the caller.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.client == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[notify] marshal event type=%s entity=%s: %v", ev.Type, ev.EntityID, err)
		return
	}

	if err := p.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		log.Printf("[notify] publish type=%s entity=%s: %v", ev.Type, ev.EntityID, err)
	}
	for _, uid := range ev.Recipients {
		if uid == "" {
			continue
		}
		if err := p.client.Publish(ctx, userChannelPrefix+uid, data).Err(); err != nil {
			log.Printf("[notify] publish user=%s type=%s: %v", uid, ev.Type, err)
		}
	}
}
