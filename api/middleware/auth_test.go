package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/google/uuid"
)

type jwtParser struct {
	cfg config.JWTConfig
}

func (p jwtParser) ParseToken(token string) (*auth.AccessTokenClaims, error) {
	claims, err := auth.ParseAccessToken(p.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(jwtParser{cfg: testJWTConfig()}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(jwtParser{cfg: testJWTConfig()}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsTokenFromAnotherIssuer(t *testing.T) {
	other := testJWTConfig()
	other.Issuer = "someone-else"
	token := mintTestToken(t, other, uuid.New())

	handler := Auth(jwtParser{cfg: testJWTConfig()}, nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID)

	var captured struct {
		user  string
		role  string
		token string
	}
	handler := Auth(jwtParser{cfg: cfg}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.token = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != string(enums.UserRoleUser) {
		t.Fatalf("expected role user got %s", captured.role)
	}
	if captured.token != token {
		t.Fatalf("expected raw token in context")
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Email:  "ada@example.com",
		Role:   enums.UserRoleUser,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
