package models

import (
	"time"

	dbtypes "github.com/angelmondragon/storefront/pkg/db/types"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a shopper account. Addresses are append-only and stored inline.
type User struct {
	ID           string                          `gorm:"column:id;primaryKey"`
	Email        string                          `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string                          `gorm:"column:password_hash;not null"`
	Name         string                          `gorm:"column:name;not null;default:''"`
	Role         enums.UserRole                  `gorm:"column:role;not null;default:'user'"`
	Addresses    dbtypes.JSONList[types.Address] `gorm:"column:addresses;type:text;not null"`
	LastLoginAt  *time.Time                      `gorm:"column:last_login_at"`
	CreatedAt    time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = enums.UserRoleUser
	}
	return nil
}

// Session renders the account as the wire session carrying token.
func (u *User) Session(token string) types.Session {
	return types.Session{
		ID:        u.ID,
		Token:     token,
		Email:     u.Email,
		Name:      u.Name,
		Addresses: append([]types.Address{}, u.Addresses...),
		Role:      u.Role,
	}
}
