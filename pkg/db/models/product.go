package models

import (
	"time"

	dbtypes "github.com/angelmondragon/storefront/pkg/db/types"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing.
type Product struct {
	ID                 string                   `gorm:"column:id;primaryKey"`
	Title              string                   `gorm:"column:title;not null"`
	Description        string                   `gorm:"column:description;not null;default:''"`
	Price              decimal.Decimal          `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPercentage float64                  `gorm:"column:discount_percentage;not null;default:0"`
	Rating             float64                  `gorm:"column:rating;not null;default:0"`
	Stock              int                      `gorm:"column:stock;not null;default:0"`
	Brand              string                   `gorm:"column:brand;not null"`
	Category           string                   `gorm:"column:category;not null"`
	Thumbnail          string                   `gorm:"column:thumbnail;not null;default:''"`
	Images             dbtypes.JSONList[string] `gorm:"column:images;type:text;not null"`
	Deleted            bool                     `gorm:"column:deleted;not null;default:false"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DTO converts the row into its wire form.
func (p *Product) DTO() types.Product {
	return types.Product{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Rating:             p.Rating,
		Stock:              p.Stock,
		Brand:              p.Brand,
		Category:           p.Category,
		Thumbnail:          p.Thumbnail,
		Images:             append([]string{}, p.Images...),
	}
}
