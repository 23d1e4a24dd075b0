// Package async implements the pending/fulfilled/rejected lifecycle every remote
// call goes through before it may touch slice state.
//
// A Container owns one slice's state. Operations run through Run, which moves the
// container to loading, performs the call, and applies the result only if no newer
// dispatch for the same target has been made since. Completions arriving after Close
// are dropped.
package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Observer receives envelope transitions. *metrics.OperationMetrics satisfies it.
type Observer interface {
	Dispatched(slice, op string)
	Fulfilled(slice, op string, took time.Duration)
	Rejected(slice, op string, took time.Duration)
	Stale(slice, op string)
	Dropped(slice, op string)
}

// Phase names the transition carried by an Event.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
	PhaseStale     Phase = "stale"
	PhaseLocal     Phase = "local"
)

// Event is delivered to subscribers after every state or status change.
type Event struct {
	Slice     string
	Operation string
	Phase     Phase
	Err       error
}

// Meta is the lifecycle half of a slice snapshot.
type Meta struct {
	Status     enums.AsyncStatus
	Error      string
	InFlight   string
	Operations map[string]enums.AsyncStatus
}

// Busy reports whether an exclusive operation currently holds the mutation slot.
func (m Meta) Busy() bool {
	return m.InFlight != ""
}

// Options configures a Container.
type Options[S any] struct {
	Name     string
	Initial  S
	Clone    func(S) S
	Logger   *logger.Logger
	Observer Observer
}

// Container serializes every mutation of one slice's state.
type Container[S any] struct {
	name  string
	clone func(S) S
	logg  *logger.Logger
	obs   Observer

	mu      sync.Mutex
	state   S
	status  enums.AsyncStatus
	errMsg  string
	ops     map[string]enums.AsyncStatus
	pending int
	busy    string
	seq     map[string]uint64
	closed  bool

	subMu      sync.Mutex
	subs       map[int]func(Event)
	nextSub    int
	onRejected []func(op string, err error)
}

// NewContainer builds a container holding opts.Initial.
func NewContainer[S any](opts Options[S]) *Container[S] {
	clone := opts.Clone
	if clone == nil {
		clone = func(s S) S { return s }
	}
	return &Container[S]{
		name:   opts.Name,
		clone:  clone,
		logg:   opts.Logger,
		obs:    opts.Observer,
		state:  opts.Initial,
		status: enums.AsyncStatusIdle,
		ops:    map[string]enums.AsyncStatus{},
		seq:    map[string]uint64{},
		subs:   map[int]func(Event){},
	}
}

// Name returns the slice name.
func (c *Container[S]) Name() string {
	return c.name
}

// Snapshot returns a deep copy of the state plus lifecycle metadata.
func (c *Container[S]) Snapshot() (S, Meta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := make(map[string]enums.AsyncStatus, len(c.ops))
	for k, v := range c.ops {
		ops[k] = v
	}
	return c.clone(c.state), Meta{
		Status:     c.status,
		Error:      c.errMsg,
		InFlight:   c.busy,
		Operations: ops,
	}
}

// Subscribe registers fn for every subsequent Event. The returned func unsubscribes.
func (c *Container[S]) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// OnRejected registers a hook invoked for every applied (non-stale) rejection.
func (c *Container[S]) OnRejected(fn func(op string, err error)) {
	c.subMu.Lock()
	c.onRejected = append(c.onRejected, fn)
	c.subMu.Unlock()
}

// Update applies a synchronous reducer. Each target listed in invalidate is bumped so
// completions dispatched before this call are treated as stale.
func (c *Container[S]) Update(name string, fn func(*S), invalidate ...string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	for _, target := range invalidate {
		c.seq[target]++
	}
	c.mu.Unlock()
	c.notify(Event{Slice: c.name, Operation: name, Phase: PhaseLocal})
	return true
}

// Close marks the container dead. Later completions are dropped and subscribers are released.
func (c *Container[S]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.subMu.Lock()
	c.subs = map[int]func(Event){}
	c.onRejected = nil
	c.subMu.Unlock()
}

// Closed reports whether Close has been called.
func (c *Container[S]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Operation describes one remote interaction of a slice.
type Operation[S, In, Out any] struct {
	Name string
	// Target names the state the result replaces; defaults to Name. Completions
	// for a target older than its latest dispatch are discarded.
	Target func(In) string
	// Exclusive operations hold the slice's single mutation slot while in flight.
	Exclusive bool
	// Invalidates lists targets whose in-flight completions become stale once this
	// operation's result is applied.
	Invalidates []string
	Validate    func(In) error
	Guard       func() error
	Call        func(context.Context, In) (Out, error)
	Apply       func(*S, In, Out)
}

type ticket struct {
	op        string
	target    string
	seq       uint64
	exclusive bool
	started   time.Time
}

// Run executes op through the envelope. Exactly one of fulfilled or rejected is
// recorded per successful dispatch; validation and guard failures never dispatch.
func Run[S, In, Out any](ctx context.Context, c *Container[S], op Operation[S, In, Out], in In) (Out, error) {
	var zero Out
	if op.Validate != nil {
		if err := op.Validate(in); err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
			}
			return zero, err
		}
	}
	if op.Guard != nil {
		if err := op.Guard(); err != nil {
			return zero, err
		}
	}

	target := op.Name
	if op.Target != nil {
		if t := op.Target(in); t != "" {
			target = t
		}
	}

	tk, err := c.begin(ctx, op.Name, target, op.Exclusive)
	if err != nil {
		return zero, err
	}

	out, callErr := invoke(ctx, c, tk, op, in)
	if callErr != nil {
		c.reject(ctx, tk, callErr)
		return zero, callErr
	}

	c.fulfill(ctx, tk, op.Invalidates, func(s *S) {
		if op.Apply != nil {
			op.Apply(s, in, out)
		}
	})
	return out, nil
}

// invoke runs op.Call. A panicking call rejects its ticket before the panic is
// re-raised so the slice's mutation slot is freed.
func invoke[S, In, Out any](ctx context.Context, c *Container[S], tk ticket, op Operation[S, In, Out], in In) (Out, error) {
	defer func() {
		if r := recover(); r != nil {
			c.reject(ctx, tk, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("%s panicked", tk.op)))
			panic(r)
		}
	}()
	return op.Call(ctx, in)
}

func (c *Container[S]) begin(ctx context.Context, op, target string, exclusive bool) (ticket, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ticket{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s slice is closed", c.name))
	}
	if exclusive && c.busy != "" {
		busy := c.busy
		c.mu.Unlock()
		return ticket{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is already in flight", busy)).
			WithDetails(map[string]any{"slice": c.name, "in_flight": busy, "requested": op})
	}
	c.seq[target]++
	tk := ticket{op: op, target: target, seq: c.seq[target], exclusive: exclusive, started: time.Now()}
	c.pending++
	c.status = enums.AsyncStatusLoading
	c.ops[op] = enums.AsyncStatusLoading
	if exclusive {
		c.busy = op
	}
	c.mu.Unlock()

	if c.obs != nil {
		c.obs.Dispatched(c.name, op)
	}
	if c.logg != nil {
		c.logg.Debug(c.logCtx(ctx, tk), "operation.pending")
	}
	c.notify(Event{Slice: c.name, Operation: op, Phase: PhasePending})
	return tk, nil
}

// settle releases the ticket's bookkeeping. It reports whether the completion must be
// dropped (container closed) and whether it is stale. Callers hold c.mu.
func (c *Container[S]) settle(tk ticket) (dropped, stale bool) {
	c.pending--
	if tk.exclusive && c.busy == tk.op {
		c.busy = ""
	}
	if c.closed {
		return true, false
	}
	return false, c.seq[tk.target] != tk.seq
}

func (c *Container[S]) fulfill(ctx context.Context, tk ticket, invalidates []string, apply func(*S)) {
	took := time.Since(tk.started)

	c.mu.Lock()
	dropped, stale := c.settle(tk)
	if dropped {
		c.mu.Unlock()
		c.reportDropped(ctx, tk)
		return
	}
	if !stale {
		apply(&c.state)
		for _, target := range invalidates {
			c.seq[target]++
		}
	}
	c.ops[tk.op] = enums.AsyncStatusIdle
	if c.pending == 0 {
		c.status = enums.AsyncStatusIdle
	}
	c.errMsg = ""
	c.mu.Unlock()

	if stale {
		if c.obs != nil {
			c.obs.Stale(c.name, tk.op)
		}
		if c.logg != nil {
			c.logg.Info(c.logCtx(ctx, tk), "operation.stale")
		}
		c.notify(Event{Slice: c.name, Operation: tk.op, Phase: PhaseStale})
		return
	}

	if c.obs != nil {
		c.obs.Fulfilled(c.name, tk.op, took)
	}
	if c.logg != nil {
		c.logg.Debug(c.logCtx(ctx, tk), "operation.fulfilled")
	}
	c.notify(Event{Slice: c.name, Operation: tk.op, Phase: PhaseFulfilled})
}

func (c *Container[S]) reject(ctx context.Context, tk ticket, err error) {
	took := time.Since(tk.started)

	c.mu.Lock()
	dropped, stale := c.settle(tk)
	if dropped {
		c.mu.Unlock()
		c.reportDropped(ctx, tk)
		return
	}
	if stale {
		c.ops[tk.op] = enums.AsyncStatusIdle
		if c.pending == 0 && c.status == enums.AsyncStatusLoading {
			c.status = enums.AsyncStatusIdle
		}
		c.mu.Unlock()
		if c.obs != nil {
			c.obs.Stale(c.name, tk.op)
		}
		c.notify(Event{Slice: c.name, Operation: tk.op, Phase: PhaseStale, Err: err})
		return
	}
	c.ops[tk.op] = enums.AsyncStatusError
	c.errMsg = pkgerrors.UserMessage(err)
	if c.pending == 0 {
		c.status = enums.AsyncStatusError
	}
	c.mu.Unlock()

	if c.obs != nil {
		c.obs.Rejected(c.name, tk.op, took)
	}
	if c.logg != nil {
		c.logg.Warn(c.logg.WithField(c.logCtx(ctx, tk), "error", err.Error()), "operation.rejected")
	}

	c.subMu.Lock()
	hooks := append([]func(string, error){}, c.onRejected...)
	c.subMu.Unlock()
	for _, hook := range hooks {
		hook(tk.op, err)
	}
	c.notify(Event{Slice: c.name, Operation: tk.op, Phase: PhaseRejected, Err: err})
}

func (c *Container[S]) reportDropped(ctx context.Context, tk ticket) {
	if c.obs != nil {
		c.obs.Dropped(c.name, tk.op)
	}
	if c.logg != nil {
		c.logg.Info(c.logCtx(ctx, tk), "operation.dropped")
	}
}

func (c *Container[S]) logCtx(ctx context.Context, tk ticket) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = c.logg.WithSlice(ctx, c.name)
	return c.logg.WithOperation(ctx, tk.op, tk.seq)
}

func (c *Container[S]) notify(evt Event) {
	c.subMu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(evt)
	}
}
