// Package backend implements the storefront resource API behind the reference
// gateway server: accounts, catalog, carts and orders over gorm.
package backend

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/forms"
	"github.com/angelmondragon/storefront/internal/orders"
	pkgauth "github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront/pkg/db/types"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/security"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Service is the business surface consumed by the HTTP controllers. Methods that
// take an actorID reject access to another user's data with FORBIDDEN.
type Service interface {
	Signup(ctx context.Context, profile types.Profile) (types.Session, error)
	Login(ctx context.Context, creds types.Credentials) (types.Session, error)
	Session(ctx context.Context, token string) (types.Session, error)
	ParseToken(token string) (*pkgauth.AccessTokenClaims, error)
	UpdateUser(ctx context.Context, actorID, token, id string, patch types.ProfilePatch) (types.Session, error)

	Products(ctx context.Context) ([]types.Product, error)
	ProductPage(ctx context.Context, filter ProductFilter) (types.ProductPage, error)
	Product(ctx context.Context, id string) (types.Product, error)
	Brands(ctx context.Context) ([]types.Option, error)
	Categories(ctx context.Context) ([]types.Option, error)

	Cart(ctx context.Context, actorID, userID string) ([]types.CartItem, error)
	AddToCart(ctx context.Context, actorID string, item types.CartItem) (types.CartItem, error)
	UpdateCart(ctx context.Context, actorID, id string, item types.CartItem) (types.CartItem, error)
	DeleteFromCart(ctx context.Context, actorID, id string) (string, error)

	CreateOrder(ctx context.Context, actorID string, order types.Order) (types.Order, error)
	Orders(ctx context.Context, actorID, userID string) ([]types.Order, error)
}

// ServiceParams groups dependencies for the backend service.
type ServiceParams struct {
	DB          *db.Client
	JWT         config.JWTConfig
	Password    config.PasswordConfig
	MaxQuantity int
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	db       *db.Client
	users    *UserRepository
	products *ProductRepository
	carts    *CartRepository
	orders   *OrderRepository
	hasher   *security.Hasher
	jwt      config.JWTConfig
	maxQty   int
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the backend service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db client is required")
	}
	if p.JWT.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jwt secret is required")
	}
	if p.MaxQuantity < 1 {
		p.MaxQuantity = 5
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	conn := p.DB.DB()
	return &service{
		db:       p.DB,
		users:    NewUserRepository(conn),
		products: NewProductRepository(conn),
		carts:    NewCartRepository(conn),
		orders:   NewOrderRepository(conn),
		hasher:   security.NewHasher(p.Password),
		jwt:      p.JWT,
		maxQty:   p.MaxQuantity,
		logg:     p.Logger,
		now:      p.Now,
	}, nil
}

func (s *service) Signup(ctx context.Context, profile types.Profile) (types.Session, error) {
	if err := forms.Profile(profile); err != nil {
		return types.Session{}, err
	}
	hash, err := s.hasher.Hash(profile.Password)
	if err != nil {
		return types.Session{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user := &models.User{
		Email:        profile.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(profile.Name),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return types.Session{}, err
	}
	s.info(ctx, user.ID, "backend.user_created")
	return s.openSession(ctx, user)
}

func (s *service) Login(ctx context.Context, creds types.Credentials) (types.Session, error) {
	if err := forms.Credentials(creds); err != nil {
		return types.Session{}, err
	}
	user, err := s.users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return types.Session{}, errInvalidCredentials
		}
		return types.Session{}, err
	}
	ok, err := s.hasher.Verify(creds.Password, user.PasswordHash)
	if err != nil || !ok {
		return types.Session{}, errInvalidCredentials
	}
	s.upgradeHash(ctx, user, creds.Password)
	return s.openSession(ctx, user)
}

// upgradeHash re-hashes a verified password stored under weaker parameters. A
// failure leaves the old hash in place; it still verifies.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithUserID(ctx, user.ID), "error", err.Error()), "backend.rehash_failed")
		return
	}
	s.info(ctx, user.ID, "backend.password_rehashed")
}

var errInvalidCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")

func (s *service) openSession(ctx context.Context, user *models.User) (types.Session, error) {
	uid, err := uuid.Parse(user.ID)
	if err != nil {
		return types.Session{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "user id is not a uuid")
	}
	now := s.now()
	token, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID: uid,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return types.Session{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return types.Session{}, err
	}
	s.info(ctx, user.ID, "backend.session_opened")
	return user.Session(token), nil
}

func (s *service) Session(ctx context.Context, token string) (types.Session, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return types.Session{}, err
	}
	user, err := s.users.FindByID(ctx, claims.UserID.String())
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return types.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
		return types.Session{}, err
	}
	return user.Session(token), nil
}

// ParseToken validates a bearer token minted by Login or Signup.
func (s *service) ParseToken(token string) (*pkgauth.AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgauth.ParseAccessToken(s.jwt, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

func (s *service) UpdateUser(ctx context.Context, actorID, token, id string, patch types.ProfilePatch) (types.Session, error) {
	if err := authorize(actorID, id); err != nil {
		return types.Session{}, err
	}
	if err := forms.Struct(patch); err != nil {
		return types.Session{}, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return types.Session{}, err
	}
	if patch.Name != nil {
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Addresses != nil {
		if !extends(patch.Addresses, user.Addresses) {
			return types.Session{}, pkgerrors.New(pkgerrors.CodeValidation, "addresses are append-only").
				WithDetails(forms.FieldErrors{"addresses": "must keep every saved address"})
		}
		normalized := make(dbtypes.JSONList[types.Address], 0, len(patch.Addresses))
		for _, a := range patch.Addresses {
			normalized = append(normalized, forms.Normalize(a))
		}
		user.Addresses = normalized
	}
	if err := s.users.Save(ctx, user); err != nil {
		return types.Session{}, err
	}
	return user.Session(token), nil
}

// extends reports whether next starts with every address in prev, in order.
func extends(next, prev []types.Address) bool {
	if len(next) < len(prev) {
		return false
	}
	for i := range prev {
		if forms.Normalize(next[i]) != forms.Normalize(prev[i]) {
			return false
		}
	}
	return true
}

func (s *service) Products(ctx context.Context) ([]types.Product, error) {
	rows, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	return productDTOs(rows), nil
}

func (s *service) ProductPage(ctx context.Context, filter ProductFilter) (types.ProductPage, error) {
	rows, total, err := s.products.Find(ctx, filter)
	if err != nil {
		return types.ProductPage{}, err
	}
	return types.ProductPage{Products: productDTOs(rows), TotalItems: int(total)}, nil
}

func (s *service) Product(ctx context.Context, id string) (types.Product, error) {
	row, err := s.products.FindByID(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	return row.DTO(), nil
}

func (s *service) Brands(ctx context.Context) ([]types.Option, error) {
	return s.products.Brands(ctx)
}

func (s *service) Categories(ctx context.Context) ([]types.Option, error) {
	return s.products.Categories(ctx)
}

func (s *service) Cart(ctx context.Context, actorID, userID string) ([]types.CartItem, error) {
	if err := authorize(actorID, userID); err != nil {
		return nil, err
	}
	rows, err := s.carts.ListByUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := make([]types.CartItem, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].DTO())
	}
	return out, nil
}

func (s *service) AddToCart(ctx context.Context, actorID string, item types.CartItem) (types.CartItem, error) {
	if err := authorize(actorID, item.UserID); err != nil {
		return types.CartItem{}, err
	}
	if strings.TrimSpace(item.ProductID) == "" {
		return types.CartItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product is required").
			WithDetails(forms.FieldErrors{"productId": "is required"})
	}
	if err := forms.Quantity(item.Quantity, s.maxQty); err != nil {
		return types.CartItem{}, err
	}
	if _, err := s.products.FindByID(ctx, item.ProductID); err != nil {
		return types.CartItem{}, err
	}
	row := &models.CartItem{UserID: actorID, ProductID: item.ProductID, Quantity: item.Quantity}
	if err := s.carts.Create(ctx, row); err != nil {
		return types.CartItem{}, err
	}
	return s.cartItem(ctx, actorID, row.ID)
}

func (s *service) UpdateCart(ctx context.Context, actorID, id string, item types.CartItem) (types.CartItem, error) {
	if err := authorize(actorID, item.UserID); err != nil {
		return types.CartItem{}, err
	}
	if err := forms.Quantity(item.Quantity, s.maxQty); err != nil {
		return types.CartItem{}, err
	}
	if err := s.carts.UpdateQuantity(ctx, actorID, id, item.Quantity); err != nil {
		return types.CartItem{}, err
	}
	return s.cartItem(ctx, actorID, id)
}

func (s *service) DeleteFromCart(ctx context.Context, actorID, id string) (string, error) {
	if err := s.carts.Delete(ctx, actorID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *service) cartItem(ctx context.Context, userID, id string) (types.CartItem, error) {
	row, err := s.carts.Find(ctx, userID, id)
	if err != nil {
		return types.CartItem{}, err
	}
	return row.DTO(), nil
}

// CreateOrder reprices every line from the catalog and stores the snapshot.
func (s *service) CreateOrder(ctx context.Context, actorID string, order types.Order) (types.Order, error) {
	if order.UserID == "" {
		order.UserID = actorID
	}
	if err := authorize(actorID, order.UserID); err != nil {
		return types.Order{}, err
	}
	if err := orders.Validate(order); err != nil {
		return types.Order{}, err
	}

	var created models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		catalog := NewProductRepository(tx)
		items := make([]types.CartItem, len(order.Items))
		for i, item := range order.Items {
			product, err := catalog.FindByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			item.Price = product.Price
			item.Title = product.Title
			item.Brand = product.Brand
			item.Thumbnail = product.Thumbnail
			item.UserID = actorID
			items[i] = item
		}
		order.Items = items
		order.Status = ""
		prepared := orders.Prepare(order)

		created = models.Order{
			UserID:          actorID,
			Items:           prepared.Items,
			TotalAmount:     prepared.TotalAmount,
			TotalItems:      prepared.TotalItems,
			PaymentMode:     prepared.PaymentMode,
			SelectedAddress: prepared.SelectedAddress,
			Status:          prepared.Status,
		}
		return NewOrderRepository(tx).Create(ctx, &created)
	})
	if err != nil {
		return types.Order{}, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":      actorID,
			"order_id":     created.ID,
			"total_amount": created.TotalAmount.StringFixed(2),
			"total_items":  created.TotalItems,
		})
		s.logg.Info(logCtx, "backend.order_created")
	}
	return created.DTO(), nil
}

func (s *service) Orders(ctx context.Context, actorID, userID string) ([]types.Order, error) {
	if err := authorize(actorID, userID); err != nil {
		return nil, err
	}
	rows, err := s.orders.ListByUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].DTO())
	}
	return out, nil
}

// authorize allows an empty target, which means the actor's own data.
func authorize(actorID, targetID string) error {
	if actorID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	if targetID != "" && targetID != actorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot access another user's data")
	}
	return nil
}

func productDTOs(rows []models.Product) []types.Product {
	out := make([]types.Product, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].DTO())
	}
	return out
}

func (s *service) info(ctx context.Context, userID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithUserID(ctx, userID), msg)
}
