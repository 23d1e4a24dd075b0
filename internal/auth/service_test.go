package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/internal/session"
	pkgauth "github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
)

type stubGateway struct {
	mu          sync.Mutex
	loginFn     func(types.Credentials) (types.Session, error)
	signupFn    func(types.Profile) (types.Session, error)
	sessionFn   func(string) (types.Session, error)
	updateFn    func(string, types.ProfilePatch) (types.Session, error)
	loginCalls  int
	lookupCalls int
	updateCalls int
}

func (s *stubGateway) Login(_ context.Context, creds types.Credentials) (types.Session, error) {
	s.mu.Lock()
	s.loginCalls++
	s.mu.Unlock()
	return s.loginFn(creds)
}

func (s *stubGateway) Signup(_ context.Context, profile types.Profile) (types.Session, error) {
	return s.signupFn(profile)
}

func (s *stubGateway) SessionByToken(_ context.Context, token string) (types.Session, error) {
	s.mu.Lock()
	s.lookupCalls++
	s.mu.Unlock()
	return s.sessionFn(token)
}

func (s *stubGateway) UpdateUser(_ context.Context, id string, patch types.ProfilePatch) (types.Session, error) {
	s.mu.Lock()
	s.updateCalls++
	s.mu.Unlock()
	return s.updateFn(id, patch)
}

func newTestService(t *testing.T, gw *stubGateway, tokens session.TokenStore) *Service {
	t.Helper()
	svc, err := NewService(Params{Gateway: gw, Tokens: tokens})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func mintToken(t *testing.T, issued time.Time) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(config.JWTConfig{Secret: "s", Issuer: "storefront", ExpirationMinutes: 60}, issued, pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleUser,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func adaSession(token string) types.Session {
	return types.Session{ID: "u1", Token: token, Email: "ada@example.com", Role: enums.UserRoleUser}
}

func validAddress() types.Address {
	return types.Address{
		FullName:      "Ada Lovelace",
		StreetAddress: "12 Analytical Way",
		City:          "London",
		State:         "Greater London",
		PinCode:       "NW1",
		Phone:         "020",
		Country:       "UK",
		Email:         "ada@example.com",
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(Params{Tokens: session.NewMemoryStore()}); err == nil {
		t.Fatal("expected gateway error")
	}
	if _, err := NewService(Params{Gateway: &stubGateway{}}); err == nil {
		t.Fatal("expected token store error")
	}
}

func TestLoginReplacesSessionAndPersistsToken(t *testing.T) {
	ctx := context.Background()
	tokens := session.NewMemoryStore()
	gw := &stubGateway{loginFn: func(types.Credentials) (types.Session, error) { return adaSession("tok-1"), nil }}
	svc := newTestService(t, gw, tokens)

	sess, err := svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.ID != "u1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	snap := svc.State()
	if snap.Session == nil || snap.Session.Token != "tok-1" || snap.Status != enums.AsyncStatusIdle {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if stored, _ := tokens.Load(ctx); stored != "tok-1" {
		t.Fatalf("expected persisted token, got %q", stored)
	}
}

func TestLoginValidationNeverDispatches(t *testing.T) {
	gw := &stubGateway{loginFn: func(types.Credentials) (types.Session, error) {
		t.Fatal("gateway must not be called")
		return types.Session{}, nil
	}}
	svc := newTestService(t, gw, session.NewMemoryStore())

	_, err := svc.Login(context.Background(), types.Credentials{Email: "not-an-email"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.State().Status != enums.AsyncStatusIdle {
		t.Fatal("validation must not transition the slice")
	}
}

func TestLoginInvalidCredentialsRejects(t *testing.T) {
	gw := &stubGateway{loginFn: func(types.Credentials) (types.Session, error) {
		return types.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}}
	svc := newTestService(t, gw, session.NewMemoryStore())

	_, err := svc.Login(context.Background(), types.Credentials{Email: "ada@example.com", Password: "bad"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	snap := svc.State()
	if snap.Session != nil || snap.Status != enums.AsyncStatusError || snap.Error != "invalid credentials" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSignupConflict(t *testing.T) {
	gw := &stubGateway{signupFn: func(types.Profile) (types.Session, error) {
		return types.Session{}, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}}
	svc := newTestService(t, gw, session.NewMemoryStore())

	_, err := svc.Signup(context.Background(), types.Profile{Email: "ada@example.com", Password: "long-enough"})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if svc.State().Error != "email already registered" {
		t.Fatalf("expected stored message, got %q", svc.State().Error)
	}
}

func TestRestoreSessionWithoutToken(t *testing.T) {
	gw := &stubGateway{sessionFn: func(string) (types.Session, error) {
		t.Fatal("no token means no lookup")
		return types.Session{}, nil
	}}
	svc := newTestService(t, gw, session.NewMemoryStore())

	sess, err := svc.RestoreSession(context.Background())
	if err != nil || sess != nil {
		t.Fatalf("expected no session, got %v %v", sess, err)
	}
	if !svc.State().Restored {
		t.Fatal("expected restore to be marked settled")
	}
}

func TestRestoreSessionResolvesToken(t *testing.T) {
	ctx := context.Background()
	token := mintToken(t, time.Now())
	tokens := session.NewMemoryStore()
	_ = tokens.Save(ctx, token)
	gw := &stubGateway{sessionFn: func(got string) (types.Session, error) {
		if got != token {
			t.Fatalf("unexpected token %q", got)
		}
		sess := adaSession("")
		return sess, nil
	}}
	svc := newTestService(t, gw, tokens)

	sess, err := svc.RestoreSession(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if sess == nil || sess.Token != token {
		t.Fatalf("expected restored session carrying the token, got %+v", sess)
	}
	if svc.Token() != token {
		t.Fatalf("expected slice token %q", token)
	}
}

func TestRestoreSessionNotFoundIsFulfilled(t *testing.T) {
	ctx := context.Background()
	tokens := session.NewMemoryStore()
	_ = tokens.Save(ctx, "opaque")
	gw := &stubGateway{sessionFn: func(string) (types.Session, error) {
		return types.Session{}, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}}
	svc := newTestService(t, gw, tokens)

	sess, err := svc.RestoreSession(ctx)
	if err != nil || sess != nil {
		t.Fatalf("expected nil session without error, got %v %v", sess, err)
	}
	snap := svc.State()
	if snap.Status != enums.AsyncStatusIdle || snap.Error != "" || !snap.Restored {
		t.Fatalf("404 must resolve as fulfilled, got %+v", snap)
	}
	if _, err := tokens.Load(ctx); !errors.Is(err, session.ErrNoToken) {
		t.Fatalf("unknown token must be forgotten, got %v", err)
	}
}

func TestRestoreSessionSkipsExpiredToken(t *testing.T) {
	ctx := context.Background()
	tokens := session.NewMemoryStore()
	_ = tokens.Save(ctx, mintToken(t, time.Now().Add(-2*time.Hour)))
	gw := &stubGateway{sessionFn: func(string) (types.Session, error) {
		t.Fatal("expired token must not reach the gateway")
		return types.Session{}, nil
	}}
	svc := newTestService(t, gw, tokens)

	sess, err := svc.RestoreSession(ctx)
	if err != nil || sess != nil {
		t.Fatalf("expected nil session, got %v %v", sess, err)
	}
	if _, err := tokens.Load(ctx); !errors.Is(err, session.ErrNoToken) {
		t.Fatal("expired token must be cleared")
	}
}

func TestAddAddressAppendsThroughUpdate(t *testing.T) {
	ctx := context.Background()
	var gotPatch types.ProfilePatch
	gw := &stubGateway{
		loginFn: func(types.Credentials) (types.Session, error) {
			sess := adaSession("tok")
			sess.Addresses = []types.Address{validAddress()}
			return sess, nil
		},
		updateFn: func(id string, patch types.ProfilePatch) (types.Session, error) {
			if id != "u1" {
				t.Fatalf("unexpected user id %q", id)
			}
			gotPatch = patch
			sess := adaSession("")
			sess.Addresses = patch.Addresses
			return sess, nil
		},
	}
	svc := newTestService(t, gw, session.NewMemoryStore())
	if _, err := svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "pw"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	second := validAddress()
	second.City = "  Paris  "
	sess, err := svc.AddAddress(ctx, second)
	if err != nil {
		t.Fatalf("add address: %v", err)
	}
	if len(gotPatch.Addresses) != 2 || gotPatch.Addresses[1].City != "Paris" {
		t.Fatalf("expected appended normalized address, got %+v", gotPatch.Addresses)
	}
	if len(sess.Addresses) != 2 || sess.Token != "tok" {
		t.Fatalf("expected token kept and two addresses, got %+v", sess)
	}
	if st := svc.State(); len(st.Session.Addresses) != 2 {
		t.Fatalf("slice not updated: %+v", st.Session)
	}
}

func TestAddAddressWhileUpdateInFlightConflicts(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{
		loginFn: func(types.Credentials) (types.Session, error) { return adaSession("tok"), nil },
		updateFn: func(_ string, patch types.ProfilePatch) (types.Session, error) {
			close(started)
			<-release
			sess := adaSession("")
			sess.Addresses = patch.Addresses
			return sess, nil
		},
	}
	svc := newTestService(t, gw, session.NewMemoryStore())
	if _, err := svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "pw"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := svc.AddAddress(ctx, validAddress())
		errc <- err
	}()
	<-started

	other := validAddress()
	other.City = "Paris"
	if _, err := svc.AddAddress(ctx, other); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first add address: %v", err)
	}

	gw.mu.Lock()
	calls := gw.updateCalls
	gw.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one gateway update, got %d", calls)
	}
	if st := svc.State(); len(st.Session.Addresses) != 1 {
		t.Fatalf("expected committed address in slice, got %+v", st.Session.Addresses)
	}
}

func TestAddAddressRejectsInvalidForm(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, session.NewMemoryStore())
	_, err := svc.AddAddress(context.Background(), types.Address{})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, session.NewMemoryStore())
	name := "Ada"
	_, err := svc.UpdateProfile(context.Background(), types.ProfilePatch{Name: &name})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutClearsSessionAndToken(t *testing.T) {
	ctx := context.Background()
	tokens := session.NewMemoryStore()
	gw := &stubGateway{loginFn: func(types.Credentials) (types.Session, error) { return adaSession("tok"), nil }}
	svc := newTestService(t, gw, tokens)
	_, _ = svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "pw"})

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if svc.State().Session != nil {
		t.Fatal("expected session cleared")
	}
	if _, err := tokens.Load(ctx); !errors.Is(err, session.ErrNoToken) {
		t.Fatal("expected token cleared")
	}
}

func TestLogoutDiscardsInFlightLogin(t *testing.T) {
	ctx := context.Background()
	tokens := session.NewMemoryStore()
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{loginFn: func(types.Credentials) (types.Session, error) {
		close(started)
		<-release
		return adaSession("late"), nil
	}}
	svc := newTestService(t, gw, tokens)

	done := make(chan struct{})
	go func() {
		_, _ = svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "pw"})
		close(done)
	}()
	<-started
	_ = svc.Logout(ctx)
	close(release)
	<-done

	if svc.State().Session != nil {
		t.Fatal("login resolved after logout must not resurrect the session")
	}
	if _, err := tokens.Load(ctx); !errors.Is(err, session.ErrNoToken) {
		t.Fatal("stale login must not persist its token")
	}
}

func TestCheckExpiry(t *testing.T) {
	ctx := context.Background()
	token := mintToken(t, time.Now())
	gw := &stubGateway{loginFn: func(types.Credentials) (types.Session, error) { return adaSession(token), nil }}
	svc := newTestService(t, gw, session.NewMemoryStore())
	_, _ = svc.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "pw"})

	if svc.CheckExpiry(ctx, time.Now()) {
		t.Fatal("fresh token must not expire")
	}
	if !svc.CheckExpiry(ctx, time.Now().Add(2*time.Hour)) {
		t.Fatal("expected expiry past exp")
	}
	if svc.State().Session != nil {
		t.Fatal("expected session cleared")
	}
	if svc.CheckExpiry(ctx, time.Now().Add(3*time.Hour)) {
		t.Fatal("nothing left to expire")
	}
}

func TestDispatchActions(t *testing.T) {
	svc := newTestService(t, &stubGateway{}, session.NewMemoryStore())
	svc.Dispatch(SessionReceived{Session: adaSession("tok")})
	if svc.Token() != "tok" {
		t.Fatal("expected session from action")
	}
	svc.Dispatch(SessionCleared{})
	if svc.Token() != "" {
		t.Fatal("expected session cleared by action")
	}
}
