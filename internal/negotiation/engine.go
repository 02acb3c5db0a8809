package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/sieless/Taxi-Tao-sub001/internal/models"
)

// allowedTransitions encodes the negotiation state flow. Terminal states carry no
// outgoing edges.
var allowedTransitions = map[models.NegotiationStatus][]models.NegotiationStatus{
	models.NegotiationStatusPending: {
		models.NegotiationStatusAccepted,
		models.NegotiationStatusDeclined,
		models.NegotiationStatusExpired,
	},
}

func CanTransition(from, to models.NegotiationStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Store is the persistence contract the engine runs on. Update is a compare-and-swap
// on the negotiation's version counter: it returns false when no row matched, which
// means another writer won the race.
type Store interface {
	Create(ctx context.Context, n *models.Negotiation) error
	Get(ctx context.Context, id uint) (*models.Negotiation, error)
	Update(ctx context.Context, n *models.Negotiation, expectVersion int) (bool, error)
}

// Engine mediates the offer/counter-offer handshake between customer and driver.
// It never self-transitions on a timer; expiry is applied by the reading layer.
type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

type CreateCommand struct {
	BookingRequestID *uint
	CustomerID       *uint // nil for guest customers, stored as an explicit NULL
	CustomerName     string
	CustomerPhone    string
	DriverID         uint
	FromLocation     string
	ToLocation       string
	OriginalPrice    float64
	ProposedPrice    float64
}

// Create opens a pending negotiation seeded with the customer's opening offer.
func (e *Engine) Create(ctx context.Context, cmd CreateCommand) (uint, error) {
	if cmd.ProposedPrice <= 0 {
		return 0, fmt.Errorf("%w: proposed price must be positive", ErrValidation)
	}
	if cmd.CustomerName == "" || cmd.CustomerPhone == "" {
		return 0, fmt.Errorf("%w: customer name and phone are required", ErrValidation)
	}
	if cmd.DriverID == 0 {
		return 0, fmt.Errorf("%w: driver is required", ErrValidation)
	}

	price := cmd.ProposedPrice
	n := &models.Negotiation{
		BookingRequestID: cmd.BookingRequestID,
		CustomerID:       cmd.CustomerID,
		CustomerName:     cmd.CustomerName,
		CustomerPhone:    cmd.CustomerPhone,
		DriverID:         cmd.DriverID,
		FromLocation:     cmd.FromLocation,
		ToLocation:       cmd.ToLocation,
		OriginalPrice:    cmd.OriginalPrice,
		CurrentOffer:     cmd.ProposedPrice,
		Status:           models.NegotiationStatusPending,
		Messages: models.NegotiationMessages{{
			Sender:    models.SenderCustomer,
			Type:      models.MessageTypeOffer,
			Price:     &price,
			Timestamp: e.now(),
		}},
	}
	if err := e.store.Create(ctx, n); err != nil {
		return 0, fmt.Errorf("create negotiation: %w", err)
	}
	return n.ID, nil
}

// Counter appends a counter-offer from either party and moves the current offer.
// A counter may diverge from the original price without bound.
func (e *Engine) Counter(ctx context.Context, id uint, sender models.NegotiationSender, price float64) error {
	if sender != models.SenderCustomer && sender != models.SenderDriver {
		return fmt.Errorf("%w: sender must be customer or driver", ErrValidation)
	}
	if price <= 0 {
		return fmt.Errorf("%w: counter price must be positive", ErrValidation)
	}

	n, err := e.pending(ctx, id)
	if err != nil {
		return err
	}
	p := price
	n.Messages = append(n.Messages, models.NegotiationMessage{
		Sender:    sender,
		Type:      models.MessageTypeCounter,
		Price:     &p,
		Timestamp: e.now(),
	})
	n.CurrentOffer = price
	return e.save(ctx, n)
}

// Accept locks the current offer in as the agreed price.
func (e *Engine) Accept(ctx context.Context, id uint, sender models.NegotiationSender) error {
	if sender != models.SenderCustomer && sender != models.SenderDriver {
		return fmt.Errorf("%w: sender must be customer or driver", ErrValidation)
	}

	n, err := e.pending(ctx, id)
	if err != nil {
		return err
	}
	n.Messages = append(n.Messages, models.NegotiationMessage{
		Sender:    sender,
		Type:      models.MessageTypeAccept,
		Timestamp: e.now(),
	})
	n.Status = models.NegotiationStatusAccepted
	return e.save(ctx, n)
}

// Decline closes the negotiation; reason rides along in the message text.
func (e *Engine) Decline(ctx context.Context, id uint, sender models.NegotiationSender, reason string) error {
	if sender != models.SenderCustomer && sender != models.SenderDriver {
		return fmt.Errorf("%w: sender must be customer or driver", ErrValidation)
	}

	n, err := e.pending(ctx, id)
	if err != nil {
		return err
	}
	n.Messages = append(n.Messages, models.NegotiationMessage{
		Sender:    sender,
		Type:      models.MessageTypeDecline,
		Message:   reason,
		Timestamp: e.now(),
	})
	n.Status = models.NegotiationStatusDeclined
	return e.save(ctx, n)
}

// Expire marks a pending negotiation expired. Called by whatever layer applies the
// staleness policy; the engine itself runs no timers.
func (e *Engine) Expire(ctx context.Context, id uint) error {
	n, err := e.pending(ctx, id)
	if err != nil {
		return err
	}
	n.Messages = append(n.Messages, models.NegotiationMessage{
		Sender:    models.SenderSystem,
		Type:      models.MessageTypeExpire,
		Message:   "negotiation expired without agreement",
		Timestamp: e.now(),
	})
	n.Status = models.NegotiationStatusExpired
	return e.save(ctx, n)
}

// Get is a pure read.
func (e *Engine) Get(ctx context.Context, id uint) (*models.Negotiation, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) pending(ctx context.Context, id uint) (*models.Negotiation, error) {
	n, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != models.NegotiationStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidTransition, n.Status)
	}
	return n, nil
}

func (e *Engine) save(ctx context.Context, n *models.Negotiation) error {
	expect := n.Version
	n.Version++
	ok, err := e.store.Update(ctx, n, expect)
	if err != nil {
		return fmt.Errorf("update negotiation %d: %w", n.ID, err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}
