package backend

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/types"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "storefront-test", ExpirationMinutes: 60}
}

func newTestService(t *testing.T) Service {
	t.Helper()
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver:       config.DBDriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, client.Dialect(), "up"))

	svc, err := NewService(ServiceParams{
		DB:          client,
		JWT:         testJWTConfig(),
		Password:    testPasswordConfig(),
		MaxQuantity: 5,
	})
	require.NoError(t, err)
	return svc
}

func signup(t *testing.T, svc Service, email string) types.Session {
	t.Helper()
	sess, err := svc.Signup(context.Background(), types.Profile{Email: email, Password: "correct-horse", Name: "Ada"})
	require.NoError(t, err)
	return sess
}

func testAddress() types.Address {
	return types.Address{
		FullName:      "Ada Lovelace",
		StreetAddress: "12 Analytical Way",
		City:          "London",
		State:         "LDN",
		PinCode:       "10001",
		Phone:         "555-0100",
		Country:       "UK",
		Email:         "ada@example.com",
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{JWT: testJWTConfig()})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSignupLoginAndSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := signup(t, svc, "Ada@Example.com")
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "ada@example.com", sess.Email)
	assert.Equal(t, enums.UserRoleUser, sess.Role)
	assert.Empty(t, sess.Addresses)

	claims, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, claims.UserID.String())
	assert.NotEmpty(t, claims.ID)

	login, err := svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, login.ID)
	assert.NotEqual(t, sess.Token, login.Token)

	restored, err := svc.Session(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, restored.ID)
	assert.Equal(t, login.Token, restored.Token)
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	svc := newTestService(t)
	signup(t, svc, "ada@example.com")

	_, err := svc.Signup(context.Background(), types.Profile{Email: "ADA@example.com", Password: "another-pass"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	signup(t, svc, "ada@example.com")
	ctx := context.Background()

	_, err := svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "wrong"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, types.Credentials{Email: "nobody@example.com", Password: "whatever"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, types.Credentials{Email: "not-an-email", Password: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSessionRejectsGarbageToken(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Session(context.Background(), "garbage")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Session(context.Background(), "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestUpdateUserAddressesAreAppendOnly(t *testing.T) {
	svc := newTestService(t)
	sess := signup(t, svc, "ada@example.com")
	ctx := context.Background()

	first := testAddress()
	updated, err := svc.UpdateUser(ctx, sess.ID, sess.Token, sess.ID, types.ProfilePatch{Addresses: []types.Address{first}})
	require.NoError(t, err)
	require.Len(t, updated.Addresses, 1)
	assert.Equal(t, sess.Token, updated.Token)

	second := testAddress()
	second.City = "Paris"
	_, err = svc.UpdateUser(ctx, sess.ID, sess.Token, sess.ID, types.ProfilePatch{Addresses: []types.Address{second}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	updated, err = svc.UpdateUser(ctx, sess.ID, sess.Token, sess.ID, types.ProfilePatch{Addresses: []types.Address{first, second}})
	require.NoError(t, err)
	assert.Len(t, updated.Addresses, 2)

	name := "  Countess  "
	updated, err = svc.UpdateUser(ctx, sess.ID, sess.Token, sess.ID, types.ProfilePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Countess", updated.Name)
	assert.Len(t, updated.Addresses, 2)
}

func TestUpdateUserForbidsOtherUsers(t *testing.T) {
	svc := newTestService(t)
	ada := signup(t, svc, "ada@example.com")
	bob := signup(t, svc, "bob@example.com")

	name := "Mallory"
	_, err := svc.UpdateUser(context.Background(), bob.ID, bob.Token, ada.ID, types.ProfilePatch{Name: &name})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))
}

func TestProductListingAndFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	all, err := svc.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 12)

	page, err := svc.ProductPage(ctx, ProductFilter{
		Filter: map[string][]string{"category": {"smartphones", "laptops"}},
		Sort:   types.Sort{Field: "price", Order: "desc"},
		Page:   pagination.Params{Page: 1, Limit: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, page.TotalItems)
	require.Len(t, page.Products, 3)
	assert.Equal(t, "MacBook Pro", page.Products[0].Title)
	assert.True(t, page.Products[0].Price.Equal(decimal.NewFromInt(1749)))

	second, err := svc.ProductPage(ctx, ProductFilter{
		Filter: map[string][]string{"category": {"smartphones", "laptops"}},
		Sort:   types.Sort{Field: "price", Order: "desc"},
		Page:   pagination.Params{Page: 3, Limit: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, second.TotalItems)
	require.Len(t, second.Products, 1)
	assert.Equal(t, "OPPOF19", second.Products[0].Title)

	apple, err := svc.ProductPage(ctx, ProductFilter{Filter: map[string][]string{"brand": {"Apple"}}})
	require.NoError(t, err)
	assert.Equal(t, 3, apple.TotalItems)
	assert.Len(t, apple.Products, 3)
}

func TestProductFiltersRejectUnknownFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.ProductPage(ctx, ProductFilter{Filter: map[string][]string{"color": {"red"}}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.ProductPage(ctx, ProductFilter{Sort: types.Sort{Field: "password"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.ProductPage(ctx, ProductFilter{Sort: types.Sort{Field: "price", Order: "sideways"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestProductLookupAndOptions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Product(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "MacBook Pro", p.Title)
	assert.Equal(t, "laptops", p.Category)
	assert.NotEmpty(t, p.Images)

	_, err = svc.Product(ctx, "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Option{
		{Label: "fragrances", Value: "fragrances"},
		{Label: "groceries", Value: "groceries"},
		{Label: "laptops", Value: "laptops"},
		{Label: "skincare", Value: "skincare"},
		{Label: "smartphones", Value: "smartphones"},
	}, categories)

	brands, err := svc.Brands(ctx)
	require.NoError(t, err)
	assert.Len(t, brands, 9)
	assert.Equal(t, "Apple", brands[0].Value)
}

func TestCartLifecycle(t *testing.T) {
	svc := newTestService(t)
	sess := signup(t, svc, "ada@example.com")
	ctx := context.Background()

	added, err := svc.AddToCart(ctx, sess.ID, types.CartItem{ProductID: "8", Quantity: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, sess.ID, added.UserID)
	assert.Equal(t, "perfume Oil", added.Title)
	assert.True(t, added.Price.Equal(decimal.NewFromInt(13)))

	_, err = svc.AddToCart(ctx, sess.ID, types.CartItem{ProductID: "8", Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.AddToCart(ctx, sess.ID, types.CartItem{ProductID: "8", Quantity: 6})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.AddToCart(ctx, sess.ID, types.CartItem{ProductID: "nope", Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	updated, err := svc.UpdateCart(ctx, sess.ID, added.ID, types.CartItem{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	items, err := svc.Cart(ctx, sess.ID, sess.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)

	id, err := svc.DeleteFromCart(ctx, sess.ID, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added.ID, id)

	_, err = svc.DeleteFromCart(ctx, sess.ID, added.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	items, err = svc.Cart(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartIsScopedToActor(t *testing.T) {
	svc := newTestService(t)
	ada := signup(t, svc, "ada@example.com")
	bob := signup(t, svc, "bob@example.com")
	ctx := context.Background()

	item, err := svc.AddToCart(ctx, ada.ID, types.CartItem{ProductID: "1", Quantity: 1})
	require.NoError(t, err)

	_, err = svc.Cart(ctx, bob.ID, ada.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.UpdateCart(ctx, bob.ID, item.ID, types.CartItem{Quantity: 2})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.DeleteFromCart(ctx, bob.ID, item.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCreateOrderRepricesFromCatalog(t *testing.T) {
	svc := newTestService(t)
	sess := signup(t, svc, "ada@example.com")
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, sess.ID, types.Order{
		Items: []types.CartItem{
			{ProductID: "11", Quantity: 1, Price: decimal.NewFromInt(1)},
			{ProductID: "8", Quantity: 2},
		},
		PaymentMode:     enums.PaymentModeCash,
		SelectedAddress: testAddress(),
		Status:          enums.OrderStatusDelivered,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, sess.ID, order.UserID)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(38)), "got %s", order.TotalAmount)
	assert.Equal(t, 3, order.TotalItems)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, "Tree Oil 30ml", order.Items[0].Title)

	history, err := svc.Orders(ctx, sess.ID, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, order.ID, history[0].ID)
	assert.Equal(t, testAddress(), history[0].SelectedAddress)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(t)
	ada := signup(t, svc, "ada@example.com")
	bob := signup(t, svc, "bob@example.com")
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, ada.ID, types.Order{PaymentMode: enums.PaymentModeCard})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.CreateOrder(ctx, bob.ID, types.Order{
		UserID:          ada.ID,
		Items:           []types.CartItem{{ProductID: "1", Quantity: 1}},
		PaymentMode:     enums.PaymentModeCard,
		SelectedAddress: testAddress(),
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.CreateOrder(ctx, ada.ID, types.Order{
		Items:           []types.CartItem{{ProductID: "missing", Quantity: 1}},
		PaymentMode:     enums.PaymentModeCard,
		SelectedAddress: testAddress(),
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	history, err := svc.Orders(ctx, ada.ID, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver:       config.DBDriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	sqlDB, err := client.SQL()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, client.Dialect(), "up"))

	weak, err := NewService(ServiceParams{DB: client, JWT: testJWTConfig(), Password: testPasswordConfig(), MaxQuantity: 5})
	require.NoError(t, err)
	_, err = weak.Signup(ctx, types.Profile{Email: "ada@example.com", Password: "correct-horse", Name: "Ada"})
	require.NoError(t, err)

	stronger := testPasswordConfig()
	stronger.ArgonTime = 2
	strong, err := NewService(ServiceParams{DB: client, JWT: testJWTConfig(), Password: stronger, MaxQuantity: 5})
	require.NoError(t, err)
	_, err = strong.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	var hash string
	require.NoError(t, sqlDB.QueryRow("SELECT password_hash FROM users WHERE email = ?", "ada@example.com").Scan(&hash))
	assert.Contains(t, hash, ",t=2,")

	_, err = weak.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err, "upgraded hash still verifies")
}
