package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"gorm.io/gorm"
)

// GormStore persists negotiations in Postgres. The version column backs the
// engine's compare-and-swap so concurrent counter/accept races lose cleanly instead
// of last-write-wins.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, n *models.Negotiation) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.Negotiation, error) {
	var n models.Negotiation
	err := s.db.WithContext(ctx).First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load negotiation: %w", err)
	}
	return &n, nil
}

func (s *GormStore) Update(ctx context.Context, n *models.Negotiation, expectVersion int) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Negotiation{}).
		Where("id = ? AND version = ?", n.ID, expectVersion).
		Updates(map[string]interface{}{
			"status":        n.Status,
			"current_offer": n.CurrentOffer,
			"messages":      n.Messages,
			"version":       n.Version,
		})
	if result.Error != nil {
		return false, fmt.Errorf("update negotiation: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListForDriver returns a driver's negotiations, newest first.
func (s *GormStore) ListForDriver(ctx context.Context, driverID uint) ([]models.Negotiation, error) {
	var out []models.Negotiation
	err := s.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list driver negotiations: %w", err)
	}
	return out, nil
}

// ListForCustomer returns a registered customer's negotiations, newest first.
func (s *GormStore) ListForCustomer(ctx context.Context, customerID uint) ([]models.Negotiation, error) {
	var out []models.Negotiation
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list customer negotiations: %w", err)
	}
	return out, nil
}
