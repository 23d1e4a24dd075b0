package auth

import (
	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/pkg/types"
)

// State is the auth slice data.
type State struct {
	Session *types.Session
	// Restored is set once a restore attempt or sign-in has settled.
	Restored bool
}

func (s State) clone() State {
	s.Session = s.Session.Clone()
	return s
}

// Snapshot is a read-only copy of the slice including its lifecycle.
type Snapshot struct {
	State
	async.Meta
}

// Action is a synchronous auth mutation.
type Action interface {
	name() string
	apply(*State)
}

// SessionReceived replaces the session wholesale.
type SessionReceived struct {
	Session types.Session
}

func (SessionReceived) name() string { return "sessionReceived" }

func (a SessionReceived) apply(st *State) {
	st.Session = (&a.Session).Clone()
	st.Restored = true
}

// SessionCleared drops the session.
type SessionCleared struct{}

func (SessionCleared) name() string { return "sessionCleared" }

func (SessionCleared) apply(st *State) {
	st.Session = nil
}

type markRestored struct{}

func (markRestored) name() string { return "restored" }

func (markRestored) apply(st *State) {
	st.Restored = true
}
