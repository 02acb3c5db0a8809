package negotiation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sieless/Taxi-Tao-sub001/internal/models"
)

// memStore is an in-memory Store with the same compare-and-swap semantics as the
// Postgres-backed one.
type memStore struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]models.Negotiation
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, items: make(map[uint]models.Negotiation)}
}

func (s *memStore) Create(ctx context.Context, n *models.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID
	s.nextID++
	s.items[n.ID] = cloneNegotiation(*n)
	return nil
}

func (s *memStore) Get(ctx context.Context, id uint) (*models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneNegotiation(n)
	return &out, nil
}

func (s *memStore) Update(ctx context.Context, n *models.Negotiation, expectVersion int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[n.ID]
	if !ok || cur.Version != expectVersion {
		return false, nil
	}
	s.items[n.ID] = cloneNegotiation(*n)
	return true, nil
}

func cloneNegotiation(n models.Negotiation) models.Negotiation {
	msgs := make(models.NegotiationMessages, len(n.Messages))
	copy(msgs, n.Messages)
	n.Messages = msgs
	return n
}

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	return NewEngine(store), store
}

func mustCreate(t *testing.T, e *Engine, proposed float64) uint {
	t.Helper()
	id, err := e.Create(context.Background(), CreateCommand{
		CustomerName:  "Wanjiku",
		CustomerPhone: "+254700111222",
		DriverID:      7,
		OriginalPrice: 5000,
		ProposedPrice: proposed,
	})
	if err != nil {
		t.Fatalf("create negotiation: %v", err)
	}
	return id
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.NegotiationStatus
		want     bool
	}{
		{models.NegotiationStatusPending, models.NegotiationStatusAccepted, true},
		{models.NegotiationStatusPending, models.NegotiationStatusDeclined, true},
		{models.NegotiationStatusPending, models.NegotiationStatusExpired, true},
		// terminal states have no outgoing transitions
		{models.NegotiationStatusAccepted, models.NegotiationStatusDeclined, false},
		{models.NegotiationStatusAccepted, models.NegotiationStatusPending, false},
		{models.NegotiationStatusDeclined, models.NegotiationStatusAccepted, false},
		{models.NegotiationStatusExpired, models.NegotiationStatusPending, false},
		{models.NegotiationStatusPending, models.NegotiationStatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreateSeedsPendingWithOneOffer(t *testing.T) {
	e, _ := newTestEngine()
	id := mustCreate(t, e, 4200)

	n, err := e.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != models.NegotiationStatusPending {
		t.Fatalf("expected pending, got %s", n.Status)
	}
	if len(n.Messages) != 1 {
		t.Fatalf("expected exactly one seed message, got %d", len(n.Messages))
	}
	seed := n.Messages[0]
	if seed.Sender != models.SenderCustomer || seed.Type != models.MessageTypeOffer {
		t.Fatalf("unexpected seed message %+v", seed)
	}
	if seed.Price == nil || *seed.Price != 4200 {
		t.Fatalf("seed message price = %v, want 4200", seed.Price)
	}
	if n.CurrentOffer != 4200 {
		t.Fatalf("currentOffer = %v, want 4200", n.CurrentOffer)
	}
}

func TestCreateValidation(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateCommand
	}{
		{"zero price", CreateCommand{CustomerName: "W", CustomerPhone: "1", DriverID: 1}},
		{"negative price", CreateCommand{CustomerName: "W", CustomerPhone: "1", DriverID: 1, ProposedPrice: -50}},
		{"missing name", CreateCommand{CustomerPhone: "1", DriverID: 1, ProposedPrice: 100}},
		{"missing phone", CreateCommand{CustomerName: "W", DriverID: 1, ProposedPrice: 100}},
		{"missing driver", CreateCommand{CustomerName: "W", CustomerPhone: "1", ProposedPrice: 100}},
	}
	for _, tc := range cases {
		if _, err := e.Create(ctx, tc.cmd); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestGuestCustomerKeepsExplicitNilID(t *testing.T) {
	e, _ := newTestEngine()
	id := mustCreate(t, e, 3000)

	n, err := e.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.CustomerID != nil {
		t.Fatalf("guest negotiation must keep a nil customer id, got %v", *n.CustomerID)
	}
}

func TestCounterOfferSequence(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 3500)

	if err := e.Counter(ctx, id, models.SenderDriver, 4000); err != nil {
		t.Fatalf("driver counter: %v", err)
	}
	if err := e.Counter(ctx, id, models.SenderCustomer, 4500); err != nil {
		t.Fatalf("customer counter: %v", err)
	}

	n, err := e.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.CurrentOffer != 4500 {
		t.Fatalf("currentOffer = %v, want 4500", n.CurrentOffer)
	}
	if len(n.Messages) != 3 {
		t.Fatalf("expected seed + 2 counters = 3 messages, got %d", len(n.Messages))
	}
	if last, ok := n.LastOffer(); !ok || last != n.CurrentOffer {
		t.Fatalf("currentOffer %v out of sync with last offer message %v", n.CurrentOffer, last)
	}
}

func TestAcceptFreezesAgreedPrice(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 3500)

	if err := e.Counter(ctx, id, models.SenderDriver, 4000); err != nil {
		t.Fatalf("counter: %v", err)
	}
	if err := e.Accept(ctx, id, models.SenderCustomer); err != nil {
		t.Fatalf("accept: %v", err)
	}

	n, err := e.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != models.NegotiationStatusAccepted {
		t.Fatalf("status = %s, want accepted", n.Status)
	}
	if n.CurrentOffer != 4000 {
		t.Fatalf("agreed price = %v, want the last counter 4000", n.CurrentOffer)
	}
	if len(n.Messages) != 3 {
		t.Fatalf("accept must append exactly one message, got %d total", len(n.Messages))
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 3500)

	if err := e.Accept(ctx, id, models.SenderDriver); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := e.Counter(ctx, id, models.SenderCustomer, 9999); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("counter after accept: expected ErrInvalidTransition, got %v", err)
	}
	if err := e.Accept(ctx, id, models.SenderCustomer); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double accept: expected ErrInvalidTransition, got %v", err)
	}
	if err := e.Decline(ctx, id, models.SenderDriver, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("decline after accept: expected ErrInvalidTransition, got %v", err)
	}
	if err := e.Expire(ctx, id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expire after accept: expected ErrInvalidTransition, got %v", err)
	}

	n, err := e.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != models.NegotiationStatusAccepted || len(n.Messages) != 2 {
		t.Fatalf("terminal negotiation mutated: status=%s messages=%d", n.Status, len(n.Messages))
	}
}

func TestDeclineCarriesReason(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 2800)

	if err := e.Decline(ctx, id, models.SenderDriver, "route not available today"); err != nil {
		t.Fatalf("decline: %v", err)
	}

	n, err := e.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != models.NegotiationStatusDeclined {
		t.Fatalf("status = %s, want declined", n.Status)
	}
	last := n.Messages[len(n.Messages)-1]
	if last.Type != models.MessageTypeDecline || last.Message != "route not available today" {
		t.Fatalf("unexpected decline message %+v", last)
	}
}

func TestExpireAppendsSystemMessage(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 2800)

	if err := e.Expire(ctx, id); err != nil {
		t.Fatalf("expire: %v", err)
	}
	n, err := e.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != models.NegotiationStatusExpired {
		t.Fatalf("status = %s, want expired", n.Status)
	}
	last := n.Messages[len(n.Messages)-1]
	if last.Sender != models.SenderSystem || last.Type != models.MessageTypeExpire {
		t.Fatalf("unexpected expire message %+v", last)
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	e, _ := newTestEngine()
	if _, err := e.Get(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := e.Counter(context.Background(), 999, models.SenderDriver, 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("counter on unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestInvalidSenderRejected(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 2800)

	if err := e.Counter(ctx, id, models.SenderSystem, 100); !errors.Is(err, ErrValidation) {
		t.Fatalf("system counter: expected ErrValidation, got %v", err)
	}
	if err := e.Accept(ctx, id, models.NegotiationSender("bystander")); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown sender accept: expected ErrValidation, got %v", err)
	}
}

func TestConcurrentAcceptVsCounter(t *testing.T) {
	// The customer-accepts-while-driver-counters race: the CAS guarantees exactly
	// one writer wins per version, so at most one of the two mutations lands.
	e, _ := newTestEngine()
	ctx := context.Background()
	id := mustCreate(t, e, 3500)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- e.Accept(ctx, id, models.SenderCustomer)
	}()
	go func() {
		defer wg.Done()
		errs <- e.Counter(ctx, id, models.SenderDriver, 4100)
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	n, err := e.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if last, ok := n.LastOffer(); ok && n.CurrentOffer != last {
		t.Fatalf("currentOffer %v out of sync with message log (last offer %v)", n.CurrentOffer, last)
	}
}
