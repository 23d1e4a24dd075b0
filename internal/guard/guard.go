// Package guard gates views on session presence. It only looks at whether a session
// exists, never at its contents, and does not remember the originally requested view.
package guard

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/auth"
	"github.com/angelmondragon/storefront/internal/store"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Decision is the outcome of resolving a path.
type Decision struct {
	Path    string
	Pattern string
	Params  map[string]string
	// Redirect is set when the view must not render.
	Redirect string
	NotFound bool
	State    enums.GuardState
}

// Render reports whether the requested view may render.
func (d Decision) Render() bool {
	return d.Redirect == "" && !d.NotFound
}

// Guard resolves views against the session state.
type Guard struct {
	routes *table
	logg   *logger.Logger

	mu    sync.Mutex
	state enums.GuardState
	unsub func()
}

// New builds a guard over routes; nil means DefaultRoutes.
func New(routes []Route, logg *logger.Logger) *Guard {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Guard{routes: newTable(routes), logg: logg, state: enums.GuardStateUnauthorized}
}

// StateFor maps session presence onto a guard state.
func StateFor(st store.State) enums.GuardState {
	if st.Auth.Session != nil {
		return enums.GuardStateAuthorized
	}
	return enums.GuardStateUnauthorized
}

// Resolve decides what happens when path is requested in st.
func (g *Guard) Resolve(st store.State, path string) Decision {
	return g.resolve(StateFor(st), path)
}

func (g *Guard) resolve(state enums.GuardState, path string) Decision {
	d := Decision{Path: path, State: state}
	pattern, params, ok := g.routes.match(path)
	if !ok {
		d.NotFound = true
		return d
	}
	d.Pattern = pattern
	d.Params = params
	switch g.routes.access[pattern] {
	case Protected:
		if state != enums.GuardStateAuthorized {
			d.Redirect = PathLogin
		}
	case GuestOnly:
		if state == enums.GuardStateAuthorized {
			d.Redirect = PathHome
		}
	}
	return d
}

// State is the last state observed through Observe.
func (g *Guard) State() enums.GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Observe tracks the store's session and logs every Authorized/Unauthorized
// transition. It replaces any previous observation.
func (g *Guard) Observe(s *store.Store) {
	g.Stop()
	g.update(s.State())
	unsub := s.Auth().Subscribe(func(ev async.Event) {
		if ev.Slice != auth.SliceName {
			return
		}
		g.update(s.State())
	})
	g.mu.Lock()
	g.unsub = unsub
	g.mu.Unlock()
}

// Stop ends the observation started by Observe.
func (g *Guard) Stop() {
	g.mu.Lock()
	unsub := g.unsub
	g.unsub = nil
	g.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (g *Guard) update(st store.State) {
	next := StateFor(st)
	g.mu.Lock()
	prev := g.state
	g.state = next
	g.mu.Unlock()
	if prev == next || g.logg == nil {
		return
	}
	ctx := g.logg.WithFields(context.Background(), map[string]any{
		"from": prev.String(),
		"to":   next.String(),
	})
	if st.Auth.Session != nil {
		ctx = g.logg.WithUserID(ctx, st.Auth.Session.ID)
	}
	g.logg.Info(ctx, "guard.transition")
}

// Navigate resolves path against the last observed state.
func (g *Guard) Navigate(path string) Decision {
	return g.resolve(g.State(), path)
}
