package credential

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultWindow is how long a backend session is treated as usable after it
// was issued.
const DefaultWindow = 8 * time.Hour

// DefaultRefreshTimeout bounds a single re-login call.
const DefaultRefreshTimeout = 15 * time.Second

// ErrUnauthenticated is returned when no session material has been stored yet.
var ErrUnauthenticated = errors.New("search backend not connected")

// RefreshError reports a failed re-login. The stored material stays stale.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session refresh failed: %v", e.Cause)
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// Loginer exchanges an access token for a new backend session.
type Loginer interface {
	Login(ctx context.Context, accessToken string) (Session, error)
}

// LoginFunc adapts a function to the Loginer interface.
type LoginFunc func(ctx context.Context, accessToken string) (Session, error)

// Login calls f.
func (f LoginFunc) Login(ctx context.Context, accessToken string) (Session, error) {
	return f(ctx, accessToken)
}

// GateOptions configures a Gate. Zero values take the defaults.
type GateOptions struct {
	Window         time.Duration
	RefreshTimeout time.Duration
	Now            func() time.Time
	Logger         *log.Logger
}

// Gate checks the stored session before every backend call and renews it
// when it has aged past the freshness window.
type Gate struct {
	store   *Store
	login   Loginer
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger
	group   singleflight.Group
}

// NewGate returns a gate over store that renews sessions with login.
func NewGate(store *Store, login Loginer, opts GateOptions) *Gate {
	g := &Gate{
		store:   store,
		login:   login,
		window:  opts.Window,
		timeout: opts.RefreshTimeout,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	if g.timeout <= 0 {
		g.timeout = DefaultRefreshTimeout
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	return g
}

// Window returns the freshness window in effect.
func (g *Gate) Window() time.Duration {
	return g.window
}

// State classifies the stored material at the gate's current time.
func (g *Gate) State() State {
	return g.store.Snapshot().StateAt(g.now(), g.window)
}

// Ensure returns a usable session. A fresh session is returned as is. A stale
// one is renewed by logging in again with the stored access token; concurrent
// callers share a single renewal.
func (g *Gate) Ensure(ctx context.Context) (Session, error) {
	m := g.store.Snapshot()
	switch m.StateAt(g.now(), g.window) {
	case StateUnauthenticated:
		return Session{}, ErrUnauthenticated
	case StateFresh:
		return m.Session, nil
	}

	ch := g.group.DoChan("refresh", func() (any, error) {
		return g.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Session{}, res.Err
		}
		return res.Val.(Session), nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

func (g *Gate) refresh(ctx context.Context) (Session, error) {
	// Another flight may have finished between the caller's check and now.
	m := g.store.Snapshot()
	switch m.StateAt(g.now(), g.window) {
	case StateUnauthenticated:
		return Session{}, ErrUnauthenticated
	case StateFresh:
		return m.Session, nil
	}

	// The renewal outlives any single caller so that waiters are not failed
	// by the first caller's cancellation.
	loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	g.logger.Printf("[credential] session issued %s ago, renewing", g.now().Sub(m.IssuedAt).Round(time.Second))

	session, err := g.login.Login(loginCtx, m.AccessToken)
	if err != nil {
		g.logger.Printf("[credential] session renewal failed: %v", err)
		return Session{}, &RefreshError{Cause: err}
	}
	if !session.Valid() {
		g.logger.Printf("[credential] session renewal returned incomplete session")
		return Session{}, &RefreshError{Cause: errors.New("login response missing session token or base URL")}
	}

	if !g.store.renew(m.AccessToken, session, g.now()) {
		return Session{}, ErrUnauthenticated
	}
	return session, nil
}
