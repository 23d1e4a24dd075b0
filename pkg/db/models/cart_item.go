package models

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one cart entry. Price and display fields are read from Product.
type CartItem struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;not null;uniqueIndex:idx_cart_items_user_product"`
	ProductID string    `gorm:"column:product_id;not null;uniqueIndex:idx_cart_items_user_product"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Product   Product   `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// DTO converts the row into its wire form. Product must be preloaded.
func (c *CartItem) DTO() types.CartItem {
	return types.CartItem{
		ID:        c.ID,
		ProductID: c.ProductID,
		UserID:    c.UserID,
		Quantity:  c.Quantity,
		Price:     c.Product.Price,
		Title:     c.Product.Title,
		Brand:     c.Product.Brand,
		Thumbnail: c.Product.Thumbnail,
	}
}
