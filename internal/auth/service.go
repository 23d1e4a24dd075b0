// Package auth holds the session slice: at most one authenticated shopper plus the
// operations that create, refresh and clear it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/forms"
	"github.com/angelmondragon/storefront/internal/session"
	pkgauth "github.com/angelmondragon/storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const SliceName = "auth"

const (
	OpLogin          = "login"
	OpSignup         = "signup"
	OpRestoreSession = "restoreSession"
	OpUpdateProfile  = "updateProfile"
	OpAddAddress     = "addAddress"
	OpLogout         = "logout"
	OpExpire         = "expire"
)

// every operation replaces the whole session
const targetSession = "session"

// Gateway is the remote surface the auth slice depends on.
type Gateway interface {
	Login(ctx context.Context, creds types.Credentials) (types.Session, error)
	Signup(ctx context.Context, profile types.Profile) (types.Session, error)
	SessionByToken(ctx context.Context, token string) (types.Session, error)
	UpdateUser(ctx context.Context, id string, patch types.ProfilePatch) (types.Session, error)
}

// Params wires the slice's collaborators.
type Params struct {
	Gateway  Gateway
	Tokens   session.TokenStore
	Logger   *logger.Logger
	Observer async.Observer
	Now      func() time.Time
}

// Service owns the auth slice.
type Service struct {
	gw     Gateway
	tokens session.TokenStore
	logg   *logger.Logger
	now    func() time.Time
	c      *async.Container[State]
}

// NewService builds the auth slice.
func NewService(p Params) (*Service, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("auth gateway required")
	}
	if p.Tokens == nil {
		return nil, fmt.Errorf("token store required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		gw:     p.Gateway,
		tokens: p.Tokens,
		logg:   p.Logger,
		now:    now,
		c: async.NewContainer(async.Options[State]{
			Name:     SliceName,
			Clone:    State.clone,
			Logger:   p.Logger,
			Observer: p.Observer,
		}),
	}, nil
}

// State returns a copy of the slice.
func (s *Service) State() Snapshot {
	st, meta := s.c.Snapshot()
	return Snapshot{State: st, Meta: meta}
}

// Subscribe registers fn for every slice event.
func (s *Service) Subscribe(fn func(async.Event)) func() {
	return s.c.Subscribe(fn)
}

// OnRejected registers a hook for rejected operations.
func (s *Service) OnRejected(fn func(op string, err error)) {
	s.c.OnRejected(fn)
}

// Dispatch applies a synchronous action. Session changes supersede in-flight session fetches.
func (s *Service) Dispatch(a Action) {
	s.c.Update(a.name(), a.apply, targetSession)
}

// Token returns the current session token, or "".
func (s *Service) Token() string {
	st, _ := s.c.Snapshot()
	if st.Session == nil {
		return ""
	}
	return st.Session.Token
}

// Close drops every later completion.
func (s *Service) Close() {
	s.c.Close()
}

// Login exchanges credentials for a session.
func (s *Service) Login(ctx context.Context, creds types.Credentials) (types.Session, error) {
	sess, err := async.Run(ctx, s.c, async.Operation[State, types.Credentials, types.Session]{
		Name:     OpLogin,
		Target:   sessionTarget[types.Credentials],
		Validate: forms.Credentials,
		Call:     s.gw.Login,
		Apply:    applySession[types.Credentials],
	}, creds)
	if err != nil {
		return types.Session{}, err
	}
	s.persist(ctx, sess.Token)
	return sess, nil
}

// Signup creates an account and signs it in.
func (s *Service) Signup(ctx context.Context, profile types.Profile) (types.Session, error) {
	sess, err := async.Run(ctx, s.c, async.Operation[State, types.Profile, types.Session]{
		Name:     OpSignup,
		Target:   sessionTarget[types.Profile],
		Validate: forms.Profile,
		Call:     s.gw.Signup,
		Apply:    applySession[types.Profile],
	}, profile)
	if err != nil {
		return types.Session{}, err
	}
	s.persist(ctx, sess.Token)
	return sess, nil
}

// RestoreSession resolves the stored token into a session. A missing, expired or
// unknown token is not an error: the slice simply ends up without a session.
func (s *Service) RestoreSession(ctx context.Context) (*types.Session, error) {
	token, err := s.tokens.Load(ctx)
	if errors.Is(err, session.ErrNoToken) {
		s.c.Update(markRestored{}.name(), markRestored{}.apply)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if exp, expErr := pkgauth.ExpiryUnverified(token); expErr == nil && !exp.After(s.now()) {
		s.debug(ctx, "session.restore.expired_token")
		s.forget(ctx)
		s.c.Update(markRestored{}.name(), markRestored{}.apply)
		return nil, nil
	}

	sess, err := async.Run(ctx, s.c, async.Operation[State, string, *types.Session]{
		Name:   OpRestoreSession,
		Target: sessionTarget[string],
		Call: func(ctx context.Context, token string) (*types.Session, error) {
			sess, err := s.gw.SessionByToken(ctx, token)
			if pkgerrors.Is(err, pkgerrors.CodeNotFound) || pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if sess.Token == "" {
				sess.Token = token
			}
			return &sess, nil
		},
		Apply: func(st *State, _ string, out *types.Session) {
			st.Session = out.Clone()
			st.Restored = true
		},
	}, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		s.forget(ctx)
	}
	return sess, nil
}

// UpdateProfile patches the signed-in user and replaces the session with the result.
func (s *Service) UpdateProfile(ctx context.Context, patch types.ProfilePatch) (types.Session, error) {
	return s.updateProfile(ctx, OpUpdateProfile, patch)
}

// AddAddress appends a validated address to the session's address book.
func (s *Service) AddAddress(ctx context.Context, addr types.Address) (types.Session, error) {
	if err := forms.Address(addr); err != nil {
		return types.Session{}, err
	}
	current, err := s.requireSession()
	if err != nil {
		return types.Session{}, err
	}
	addresses := append(append([]types.Address{}, current.Addresses...), forms.Normalize(addr))
	return s.updateProfile(ctx, OpAddAddress, types.ProfilePatch{Addresses: addresses})
}

func (s *Service) updateProfile(ctx context.Context, name string, patch types.ProfilePatch) (types.Session, error) {
	current, err := s.requireSession()
	if err != nil {
		return types.Session{}, err
	}
	return async.Run(ctx, s.c, async.Operation[State, types.ProfilePatch, types.Session]{
		Name:      name,
		Target:    sessionTarget[types.ProfilePatch],
		Exclusive: true,
		Validate:  func(p types.ProfilePatch) error { return forms.Struct(p) },
		Guard: func() error {
			_, err := s.requireSession()
			return err
		},
		Call: func(ctx context.Context, p types.ProfilePatch) (types.Session, error) {
			sess, err := s.gw.UpdateUser(ctx, current.ID, p)
			if err != nil {
				return types.Session{}, err
			}
			if sess.Token == "" {
				sess.Token = current.Token
			}
			return sess, nil
		},
		Apply: func(st *State, _ types.ProfilePatch, out types.Session) {
			// a logout or re-login while the patch was in flight wins
			if st.Session == nil || st.Session.ID != out.ID {
				return
			}
			st.Session = out.Clone()
		},
	}, patch)
}

// Logout clears the session locally and forgets the stored token.
func (s *Service) Logout(ctx context.Context) error {
	s.c.Update(OpLogout, clearSession, targetSession)
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Expire clears a session the gateway no longer accepts.
func (s *Service) Expire(ctx context.Context) {
	if st, _ := s.c.Snapshot(); st.Session == nil {
		return
	}
	s.c.Update(OpExpire, clearSession, targetSession)
	s.forget(ctx)
	if s.logg != nil {
		s.logg.Info(s.logg.WithSlice(ctx, SliceName), "session.expired")
	}
}

// CheckExpiry expires the session when its token's exp claim is not after now.
// It reports whether the session was expired.
func (s *Service) CheckExpiry(ctx context.Context, now time.Time) bool {
	token := s.Token()
	if token == "" {
		return false
	}
	exp, err := pkgauth.ExpiryUnverified(token)
	if err != nil || exp.After(now) {
		return false
	}
	s.Expire(ctx)
	return true
}

func (s *Service) requireSession() (*types.Session, error) {
	st, _ := s.c.Snapshot()
	if st.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return st.Session, nil
}

func (s *Service) persist(ctx context.Context, token string) {
	// only persist a token that is still current
	if token == "" || s.Token() != token {
		return
	}
	if err := s.tokens.Save(ctx, token); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithSlice(ctx, SliceName), "error", err.Error()), "session.persist_failed")
	}
}

func (s *Service) forget(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithSlice(ctx, SliceName), "error", err.Error()), "session.clear_failed")
	}
}

func (s *Service) debug(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Debug(s.logg.WithSlice(ctx, SliceName), msg)
	}
}

func sessionTarget[In any](In) string {
	return targetSession
}

func applySession[In any](st *State, _ In, out types.Session) {
	st.Session = (&out).Clone()
	st.Restored = true
}

func clearSession(st *State) {
	st.Session = nil
}
