package backend

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
)

// OrderRepository persists placed orders.
type OrderRepository struct {
	repo.Base
}

func NewOrderRepository(conn *gorm.DB) *OrderRepository {
	return &OrderRepository{Base: repo.NewBase(conn)}
}

// Create inserts order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return repo.Translate(r.DB(ctx).Create(order).Error, "", "order already exists")
}

// ListByUser returns the user's orders newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var rows []models.Order
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, repo.Translate(err, "", "")
}
