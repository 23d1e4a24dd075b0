package backend

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/types"
)

// UserRepository persists shopper accounts.
type UserRepository struct {
	repo.Base
}

// NewUserRepository constructs a users repo bound to the provided GORM DB.
func NewUserRepository(conn *gorm.DB) *UserRepository {
	return &UserRepository{Base: repo.NewBase(conn)}
}

// Create inserts a new user. A taken email surfaces as CONFLICT.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if user.Addresses == nil {
		user.Addresses = []types.Address{}
	}
	return repo.Translate(r.DB(ctx).Create(user).Error, "", "email already registered")
}

// FindByEmail retrieves the user matching the provided email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, repo.Translate(err, "user not found", "")
	}
	return &user, nil
}

// FindByID loads a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, repo.Translate(err, "user not found", "")
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	err := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
	return repo.Translate(err, "", "")
}

// UpdatePasswordHash replaces the stored hash for id.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	err := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
	return repo.Translate(err, "", "")
}

// Save writes the mutable profile columns of user.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	err := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":      user.Name,
			"addresses": user.Addresses,
		}).Error
	return repo.Translate(err, "", "")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
