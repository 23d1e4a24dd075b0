package backend

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// CartRepository persists cart entries. Every call is scoped to one user.
type CartRepository struct {
	repo.Base
}

func NewCartRepository(conn *gorm.DB) *CartRepository {
	return &CartRepository{Base: repo.NewBase(conn)}
}

// ListByUser returns the user's cart oldest first with products preloaded.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.DB(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, repo.Translate(err, "", "")
}

// Create inserts item. A second entry for the same product surfaces as CONFLICT.
func (r *CartRepository) Create(ctx context.Context, item *models.CartItem) error {
	err := r.DB(ctx).Omit("Product").Create(item).Error
	return repo.Translate(err, "", "product already in cart")
}

// Find loads one of the user's entries with its product.
func (r *CartRepository) Find(ctx context.Context, userID, id string) (*models.CartItem, error) {
	var row models.CartItem
	err := r.DB(ctx).
		Preload("Product").
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		return nil, repo.Translate(err, "cart item not found", "")
	}
	return &row, nil
}

// UpdateQuantity sets the quantity of one of the user's entries.
func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, id string, quantity int) error {
	res := r.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("quantity", quantity)
	if res.Error != nil {
		return repo.Translate(res.Error, "", "")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

// Delete removes one of the user's entries.
func (r *CartRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.DB(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return repo.Translate(res.Error, "", "")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}
