package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worklane/worklane-backend/internal/escrow/domain"
	"github.com/worklane/worklane-backend/internal/notifications"
	opdomain "github.com/worklane/worklane-backend/internal/operations/domain"
)

// memStore is an in-memory Store. A single mutex around InTx provides the
// same serialization the postgres repo gets from SELECT ... FOR UPDATE.
type memStore struct {
	mu         sync.Mutex
	escrows    map[string]*domain.Escrow
	operations map[string]*domain.OperationState
	releases   map[string]*domain.Release // keyed escrowID+"/"+requestID
}

func newMemStore() *memStore {
	return &memStore{
		escrows:    make(map[string]*domain.Escrow),
		operations: make(map[string]*domain.OperationState),
		releases:   make(map[string]*domain.Release),
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// stage on copies so a failed fn leaves no partial writes
	staged := &memTx{
		base:     s,
		escrows:  make(map[string]*domain.Escrow),
		releases: make(map[string]*domain.Release),
	}
	if err := fn(staged); err != nil {
		return err
	}
	for id, e := range staged.escrows {
		s.escrows[id] = e
	}
	for k, rel := range staged.releases {
		s.releases[k] = rel
	}
	return nil
}

func (s *memStore) EscrowByID(ctx context.Context, id string) (*domain.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) EscrowForProject(ctx context.Context, projectID string) (*domain.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.escrows {
		if e.ProjectID == projectID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memTx struct {
	base     *memStore
	escrows  map[string]*domain.Escrow
	releases map[string]*domain.Release
}

func (t *memTx) EscrowForUpdate(ctx context.Context, id string) (*domain.Escrow, error) {
	if e, ok := t.escrows[id]; ok {
		return e, nil
	}
	e, ok := t.base.escrows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	t.escrows[id] = &cp
	return &cp, nil
}

func (t *memTx) ActiveEscrowForProject(ctx context.Context, projectID string) (*domain.Escrow, error) {
	for _, e := range t.base.escrows {
		if e.ProjectID == projectID && !e.Status.Terminal() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertEscrow(ctx context.Context, e *domain.Escrow) error {
	cp := *e
	t.escrows[e.ID] = &cp
	return nil
}

func (t *memTx) UpdateEscrow(ctx context.Context, e *domain.Escrow) error {
	cp := *e
	t.escrows[e.ID] = &cp
	return nil
}

func (t *memTx) Operation(ctx context.Context, id string) (*domain.OperationState, error) {
	op, ok := t.base.operations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (t *memTx) ReleaseByRequestID(ctx context.Context, escrowID, requestID string) (*domain.Release, error) {
	if rel, ok := t.base.releases[escrowID+"/"+requestID]; ok {
		cp := *rel
		return &cp, nil
	}
	return nil, nil
}

func (t *memTx) InsertRelease(ctx context.Context, rel *domain.Release) error {
	cp := *rel
	t.releases[rel.EscrowID+"/"+rel.RequestID] = &cp
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *memPublisher) Publish(ctx context.Context, ev notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

const (
	clientID   = "11111111-1111-1111-1111-111111111111"
	providerID = "22222222-2222-2222-2222-222222222222"
	projectID  = "33333333-3333-3333-3333-333333333333"
	strangerID = "44444444-4444-4444-4444-444444444444"
)

func setup(t *testing.T) (*EscrowService, *memStore, *memPublisher) {
	t.Helper()
	store := newMemStore()
	store.operations[projectID] = &domain.OperationState{
		ID:         projectID,
		ClientID:   clientID,
		ProviderID: providerID,
		Status:     string(opdomain.StatusInProgress),
		Currency:   "USD",
	}
	events := &memPublisher{}
	return NewEscrowService(store, events), store, events
}

func client() Identity   { return Identity{UserID: clientID, Role: "client"} }
func admin() Identity    { return Identity{UserID: "admin-1", Role: RoleAdmin} }
func stranger() Identity { return Identity{UserID: strangerID, Role: "client"} }

func mustCreate(t *testing.T, svc *EscrowService, amount int64) *domain.Escrow {
	t.Helper()
	e, err := svc.Create(context.Background(), client(), CreateInput{
		ProjectID: projectID,
		Amount:    amount,
		Currency:  "USD",
	})
	require.NoError(t, err)
	return e
}

func TestCreate(t *testing.T) {
	t.Run("creates pending escrow with nothing released", func(t *testing.T) {
		svc, _, events := setup(t)

		e := mustCreate(t, svc, 1000)
		assert.Equal(t, domain.StatusPending, e.Status)
		assert.EqualValues(t, 0, e.ReleasedAmount)
		assert.EqualValues(t, 1000, e.Amount)
		assert.Equal(t, "USD", e.Currency)
		assert.Equal(t, clientID, e.ClientID)
		assert.Contains(t, events.types(), domain.EventCreated)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		svc, _, _ := setup(t)

		_, err := svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: 0, Currency: "USD"})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: -5, Currency: "USD"})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("rejects second active escrow for same project", func(t *testing.T) {
		svc, _, _ := setup(t)

		mustCreate(t, svc, 1000)
		_, err := svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: 500, Currency: "USD"})
		assert.ErrorIs(t, err, domain.ErrDuplicateEscrow)
	})

	t.Run("allows new escrow once prior one is terminal", func(t *testing.T) {
		svc, _, _ := setup(t)

		e := mustCreate(t, svc, 1000)
		_, err := svc.Refund(context.Background(), client(), e.ID, "changed scope")
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: 800, Currency: "USD"})
		assert.NoError(t, err)
	})

	t.Run("rejects currency mismatch with operation budget", func(t *testing.T) {
		svc, _, _ := setup(t)

		_, err := svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: 1000, Currency: "EUR"})
		assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
	})

	t.Run("rejects malformed currency", func(t *testing.T) {
		svc, _, _ := setup(t)

		_, err := svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: 1000, Currency: "US"})
		assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
	})

	t.Run("rejects non-client caller", func(t *testing.T) {
		svc, _, _ := setup(t)

		_, err := svc.Create(context.Background(), stranger(), CreateInput{ProjectID: projectID, Amount: 1000, Currency: "USD"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("rejects cancelled operation", func(t *testing.T) {
		svc, store, _ := setup(t)
		store.operations[projectID].Status = string(opdomain.StatusCancelled)

		_, err := svc.Create(context.Background(), client(), CreateInput{ProjectID: projectID, Amount: 1000, Currency: "USD"})
		assert.ErrorIs(t, err, domain.ErrOperationCancelled)
	})
}

func TestReleaseFunds(t *testing.T) {
	ctx := context.Background()

	t.Run("partial then full release", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		got, replayed, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, Reason: "milestone 1", RequestID: "r-1"})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.EqualValues(t, 400, got.ReleasedAmount)
		assert.Equal(t, domain.StatusPartiallyReleased, got.Status)

		// 400 + 700 > 1000: rejected, state unchanged
		_, _, err = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 700, RequestID: "r-2"})
		assert.ErrorIs(t, err, domain.ErrInsufficientHeldFunds)

		unchanged, err := svc.Get(ctx, client(), e.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 400, unchanged.ReleasedAmount)
		assert.Equal(t, domain.StatusPartiallyReleased, unchanged.Status)

		got, _, err = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 600, RequestID: "r-3"})
		require.NoError(t, err)
		assert.EqualValues(t, 1000, got.ReleasedAmount)
		assert.Equal(t, domain.StatusFullyReleased, got.Status)

		// terminal: refund now invalid
		_, err = svc.Refund(ctx, client(), e.ID, "too late")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("huge release amount cannot wrap the funds guard", func(t *testing.T) {
		svc, store, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		require.NoError(t, err)

		// 400 + MaxInt64 wraps negative; the guard must still reject it
		_, _, err = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: math.MaxInt64, RequestID: "r-2"})
		assert.ErrorIs(t, err, domain.ErrInsufficientHeldFunds)

		final := store.escrows[e.ID]
		assert.EqualValues(t, 400, final.ReleasedAmount)
		assert.Equal(t, domain.StatusPartiallyReleased, final.Status)
	})

	t.Run("replayed request id applies nothing", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		first, replayed, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "dup"})
		require.NoError(t, err)
		assert.False(t, replayed)

		second, replayed, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "dup"})
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, first.ReleasedAmount, second.ReleasedAmount)
		assert.EqualValues(t, 400, second.ReleasedAmount)
	})

	t.Run("replay by a non-payer is forbidden", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "shared"})
		require.NoError(t, err)

		// knowing (escrowID, requestID) must not leak escrow state
		_, _, err = svc.ReleaseFunds(ctx, stranger(), e.ID, ReleaseInput{Amount: 400, RequestID: "shared"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("replayed request id with a different amount is rejected", func(t *testing.T) {
		svc, store, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		require.NoError(t, err)

		_, _, err = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 500, RequestID: "r-1"})
		assert.ErrorIs(t, err, domain.ErrRequestIDReused)

		assert.EqualValues(t, 400, store.escrows[e.ID].ReleasedAmount)
	})

	t.Run("requires request id", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400})
		assert.ErrorIs(t, err, domain.ErrMissingRequestID)
	})

	t.Run("rejects release on cancelled operation", func(t *testing.T) {
		svc, store, _ := setup(t)
		e := mustCreate(t, svc, 1000)
		store.operations[projectID].Status = string(opdomain.StatusCancelled)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		assert.ErrorIs(t, err, domain.ErrOperationCancelled)
	})

	t.Run("rejects release while disputed", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, err := svc.Dispute(ctx, client(), e.ID)
		require.NoError(t, err)

		_, _, err = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("rejects non-payer", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, stranger(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown escrow", func(t *testing.T) {
		svc, _, _ := setup(t)

		_, _, err := svc.ReleaseFunds(ctx, client(), "99999999-9999-9999-9999-999999999999", ReleaseInput{Amount: 400, RequestID: "r-1"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent releases never exceed held amount", func(t *testing.T) {
		svc, store, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				// each goroutine its own request id; 10 x 150 > 1000 so some must fail
				_, _, _ = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{
					Amount:    150,
					RequestID: string(rune('a' + n)),
				})
			}(i)
		}
		wg.Wait()

		final := store.escrows[e.ID]
		assert.LessOrEqual(t, final.ReleasedAmount, final.Amount)
		assert.GreaterOrEqual(t, final.ReleasedAmount, int64(0))
		assert.Equal(t, domain.DeriveStatus(final.Amount, final.ReleasedAmount, final.Disputed, final.Refunded), final.Status)
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("refund from pending", func(t *testing.T) {
		svc, _, events := setup(t)
		e := mustCreate(t, svc, 1000)

		got, err := svc.Refund(ctx, client(), e.ID, "no longer needed")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRefunded, got.Status)
		assert.Contains(t, events.types(), domain.EventRefunded)
	})

	t.Run("refund from partially released keeps released amount", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		require.NoError(t, err)

		got, err := svc.Refund(ctx, client(), e.ID, "partial delivery")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRefunded, got.Status)
		assert.EqualValues(t, 400, got.ReleasedAmount)
	})

	t.Run("refund while disputed is invalid", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, err := svc.Dispute(ctx, client(), e.ID)
		require.NoError(t, err)

		_, err = svc.Refund(ctx, client(), e.ID, "impatient")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestDispute(t *testing.T) {
	ctx := context.Background()

	t.Run("provider may dispute", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		got, err := svc.Dispute(ctx, Identity{UserID: providerID, Role: "provider"}, e.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDisputed, got.Status)
	})

	t.Run("stranger may not dispute", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, err := svc.Dispute(ctx, stranger(), e.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("resolve with release returns to releasing path", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, _, err := svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 400, RequestID: "r-1"})
		require.NoError(t, err)
		_, err = svc.Dispute(ctx, client(), e.ID)
		require.NoError(t, err)

		got, err := svc.ResolveDispute(ctx, admin(), e.ID, domain.OutcomeRelease)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPartiallyReleased, got.Status)

		// releases work again
		got, _, err = svc.ReleaseFunds(ctx, client(), e.ID, ReleaseInput{Amount: 600, RequestID: "r-2"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFullyReleased, got.Status)
	})

	t.Run("resolve with refund terminates", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, err := svc.Dispute(ctx, client(), e.ID)
		require.NoError(t, err)

		got, err := svc.ResolveDispute(ctx, admin(), e.ID, domain.OutcomeRefund)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRefunded, got.Status)
	})

	t.Run("only admin resolves", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, err := svc.Dispute(ctx, client(), e.ID)
		require.NoError(t, err)

		_, err = svc.ResolveDispute(ctx, client(), e.ID, domain.OutcomeRelease)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("resolve without open dispute is invalid", func(t *testing.T) {
		svc, _, _ := setup(t)
		e := mustCreate(t, svc, 1000)

		_, err := svc.ResolveDispute(ctx, admin(), e.ID, domain.OutcomeRelease)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestGetAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	e := mustCreate(t, svc, 1000)

	_, err := svc.Get(ctx, client(), e.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, Identity{UserID: providerID, Role: "provider"}, e.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, admin(), e.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, stranger(), e.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
