package models

import (
	"time"

	dbtypes "github.com/angelmondragon/storefront/pkg/db/types"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the persisted checkout snapshot. Items and the address are frozen copies.
type Order struct {
	ID              string                           `gorm:"column:id;primaryKey"`
	UserID          string                           `gorm:"column:user_id;not null;index"`
	Items           dbtypes.JSONList[types.CartItem] `gorm:"column:items;type:text;not null"`
	TotalAmount     decimal.Decimal                  `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalItems      int                              `gorm:"column:total_items;not null"`
	PaymentMode     enums.PaymentMode                `gorm:"column:payment_mode;not null"`
	SelectedAddress types.Address                    `gorm:"column:selected_address;type:text;serializer:json;not null"`
	Status          enums.OrderStatus                `gorm:"column:status;not null;default:'pending'"`
	CreatedAt       time.Time                        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                        `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}

// DTO converts the row into its wire form.
func (o *Order) DTO() types.Order {
	return types.Order{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           append([]types.CartItem{}, o.Items...),
		TotalAmount:     o.TotalAmount,
		TotalItems:      o.TotalItems,
		PaymentMode:     o.PaymentMode,
		SelectedAddress: o.SelectedAddress,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
	}
}
