// Package session implements the client side of the alumni network's auth
// core: a session state machine that reconciles a locally cached identity
// against the server's freshly resolved one, survives store outages and
// stale caches, and fails closed when the server rejects its token.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/openalumni/go-alumni-auth"
)

// Status is the session's position in its lifecycle.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusBootstrapping   Status = "bootstrapping"
	StatusLoggingIn       Status = "logging_in"
	StatusAuthenticated   Status = "authenticated"
	StatusRefreshing      Status = "refreshing"
	StatusLoggingOut      Status = "logging_out"
	StatusUnauthenticated Status = "unauthenticated"
)

const textCodeInvalidTransition = "INVALID_SESSION_TRANSITION"

// ErrInvalidTransition is returned when an operation is requested from a
// state that cannot legally serve it.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// DefaultRefreshTimeout bounds identity fetches so the session never
// blocks indefinitely on the network.
const DefaultRefreshTimeout = 10 * time.Second

// Snapshot is a point-in-time copy of the session state, safe to hold
// across manager mutations.
type Snapshot struct {
	Status     Status
	Token      string
	Identity   *Identity
	Refreshing bool
	LastError  error
	Epoch      uint64
}

// Authenticated reports whether the session currently holds a token and a
// resolved identity.
func (s Snapshot) Authenticated() bool {
	return (s.Status == StatusAuthenticated || s.Status == StatusRefreshing) &&
		s.Token != "" && s.Identity != nil
}

// Subscriber receives a snapshot after every state change.
type Subscriber func(Snapshot)

// Manager owns one client session. All exported methods are safe for
// concurrent use; ordering between a Logout and an in-flight refresh is
// settled by the epoch counter, never by who grabs the lock first.
type Manager struct {
	mu          sync.Mutex
	status      Status
	token       string
	identity    *Identity
	lastError   error
	epoch       uint64
	refreshing  bool
	subscribers map[int]Subscriber
	nextSubID   int

	cache          Cache
	transport      Transport
	logger         auth.Logger
	now            func() time.Time
	refreshTimeout time.Duration

	transitions map[Status]map[Status]struct{}
}

type ManagerOption func(*Manager)

func WithLogger(logger auth.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRefreshTimeout bounds every identity fetch the manager issues.
func WithRefreshTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

func NewManager(transport Transport, cache Cache, opts ...ManagerOption) *Manager {
	if transport == nil {
		panic("Missing Transport in session manager...")
	}

	if cache == nil {
		panic("Missing Cache in session manager...")
	}

	m := &Manager{
		status:         StatusUnknown,
		cache:          cache,
		transport:      transport,
		logger:         defLogger{},
		now:            time.Now,
		refreshTimeout: DefaultRefreshTimeout,
		subscribers:    map[int]Subscriber{},
		transitions: map[Status]map[Status]struct{}{
			StatusUnknown: {
				StatusBootstrapping: {},
				StatusLoggingIn:     {},
			},
			StatusBootstrapping: {
				StatusAuthenticated:   {},
				StatusUnauthenticated: {},
			},
			StatusUnauthenticated: {
				StatusBootstrapping: {},
				StatusLoggingIn:     {},
			},
			StatusLoggingIn: {
				StatusAuthenticated:   {},
				StatusUnauthenticated: {},
			},
			StatusAuthenticated: {
				StatusRefreshing: {},
				StatusLoggingOut: {},
			},
			StatusRefreshing: {
				StatusAuthenticated:   {},
				StatusUnauthenticated: {},
				StatusLoggingOut:      {},
			},
			StatusLoggingOut: {
				StatusUnauthenticated: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Subscribe registers a state-change callback and returns an unsubscribe
// function. Callbacks run outside the manager lock.
func (m *Manager) Subscribe(fn Subscriber) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// LastEmail returns the login-form prefill hint, if one was persisted.
// The hint is a UX convenience only; it carries no authorization weight.
func (m *Manager) LastEmail(ctx context.Context) string {
	data, err := m.cache.Get(ctx, KeyLastEmail)
	if err != nil {
		return ""
	}
	return string(data)
}

// Bootstrap hydrates the session from the persistent cache. With a cached
// token and identity the session is optimistically Authenticated right away
// and a background refresh reconciles against the server; with only a token
// the refresh is performed inline before the outcome is decided. Calling
// Bootstrap while Authenticated or already bootstrapping is a no-op.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	switch m.status {
	case StatusAuthenticated, StatusRefreshing, StatusBootstrapping:
		m.mu.Unlock()
		return nil
	case StatusLoggingIn, StatusLoggingOut:
		from := m.status
		m.mu.Unlock()
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   StatusBootstrapping,
		})
	}

	if err := m.transitionLocked(StatusBootstrapping); err != nil {
		m.mu.Unlock()
		return err
	}

	epoch := m.epoch
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	tokenBytes, err := m.cache.Get(ctx, KeyToken)
	if err != nil {
		if !IsCacheMiss(err) {
			m.logger.Warn("bootstrap cache read failed", "error", err)
		}
		m.settle(epoch, StatusUnauthenticated, nil)
		return nil
	}
	token := string(tokenBytes)

	if data, err := m.cache.Get(ctx, KeyIdentity); err == nil {
		identity, decodeErr := DecodeIdentity(data)
		if decodeErr == nil {
			// fast path: trust the cached copy for rendering, reconcile
			// against the server in the background
			m.mu.Lock()
			if m.epoch != epoch {
				m.mu.Unlock()
				return nil
			}
			m.token = token
			m.identity = identity
			m.refreshing = true
			if err := m.transitionLocked(StatusAuthenticated); err != nil {
				m.mu.Unlock()
				return err
			}
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.publish(snap)

			go m.backgroundRefresh(epoch, token)
			return nil
		}
		m.logger.Warn("bootstrap discarding corrupt cached identity", "error", decodeErr)
	}

	// token but no usable identity: resolve before deciding the outcome
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil
	}
	m.token = token
	m.refreshing = true
	m.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	identity, fetchErr := m.transport.FetchIdentity(fetchCtx, token)
	m.applyRefresh(epoch, identity, fetchErr)
	return fetchErr
}

// Login exchanges credentials for a token and identity. On failure the
// session stays Unauthenticated with the rejection recorded as LastError.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	switch m.status {
	case StatusAuthenticated, StatusRefreshing:
		m.mu.Unlock()
		return nil
	case StatusBootstrapping, StatusLoggingIn, StatusLoggingOut:
		from := m.status
		m.mu.Unlock()
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   StatusLoggingIn,
		})
	}

	if err := m.transitionLocked(StatusLoggingIn); err != nil {
		m.mu.Unlock()
		return err
	}

	epoch := m.epoch
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	result, err := m.transport.Login(ctx, creds)
	if err != nil {
		m.logger.Info("login rejected", "error", err)
		m.settle(epoch, StatusUnauthenticated, err)
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	newEpoch := m.epoch
	m.token = result.Token
	m.identity = result.Identity
	m.lastError = nil
	m.refreshing = result.Identity == nil
	if err := m.transitionLocked(StatusAuthenticated); err != nil {
		m.mu.Unlock()
		return err
	}
	snap = m.snapshotLocked()
	m.mu.Unlock()

	m.persistSession(ctx, result.Token, result.Identity, creds.Email)
	m.publish(snap)

	if result.Identity == nil {
		go m.backgroundRefresh(newEpoch, result.Token)
	}

	return nil
}

// Register creates an account and brings the fresh session up: the server
// returns a token only, so the identity is fetched before the session is
// declared Authenticated. A fresh registration has no cached identity to
// fall back on, so a fetch failure leaves the session Unauthenticated.
func (m *Manager) Register(ctx context.Context, fields Registration) error {
	m.mu.Lock()
	switch m.status {
	case StatusAuthenticated, StatusRefreshing:
		m.mu.Unlock()
		return nil
	case StatusBootstrapping, StatusLoggingIn, StatusLoggingOut:
		from := m.status
		m.mu.Unlock()
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   StatusLoggingIn,
		})
	}

	if err := m.transitionLocked(StatusLoggingIn); err != nil {
		m.mu.Unlock()
		return err
	}

	epoch := m.epoch
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	token, err := m.transport.Register(ctx, fields)
	if err != nil {
		m.logger.Info("registration rejected", "error", err)
		m.settle(epoch, StatusUnauthenticated, err)
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	newEpoch := m.epoch
	m.token = token
	m.refreshing = true
	m.mu.Unlock()

	m.persistSession(ctx, token, nil, fields.Email)

	fetchCtx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	identity, fetchErr := m.transport.FetchIdentity(fetchCtx, token)
	m.applyRefresh(newEpoch, identity, fetchErr)
	return fetchErr
}

// RefreshIdentity re-resolves the identity for the current token. A role
// change on the server is not an error; the fresh record simply replaces
// the old one. Rejected tokens force a fail-closed logout; network failures
// keep the last known good state and record LastError.
func (m *Manager) RefreshIdentity(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRefreshing {
		m.mu.Unlock()
		return nil
	}
	if m.status != StatusAuthenticated {
		from := m.status
		m.mu.Unlock()
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   StatusRefreshing,
		})
	}

	if err := m.transitionLocked(StatusRefreshing); err != nil {
		m.mu.Unlock()
		return err
	}

	m.refreshing = true
	epoch := m.epoch
	token := m.token
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	fetchCtx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	identity, err := m.transport.FetchIdentity(fetchCtx, token)
	m.applyRefresh(epoch, identity, err)
	return err
}

// Logout tears the session down unconditionally: bump the epoch so any
// in-flight refresh result is discarded on arrival, purge the persisted
// token and identity, and settle on Unauthenticated. Logging out an
// Unauthenticated or Unknown session is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusUnauthenticated || m.status == StatusUnknown {
		m.mu.Unlock()
		return nil
	}

	m.epoch++
	m.token = ""
	m.identity = nil
	m.lastError = nil
	m.refreshing = false
	m.status = StatusLoggingOut
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	if err := m.cache.Clear(ctx, KeyToken); err != nil {
		m.logger.Warn("logout failed to clear token", "error", err)
	}
	if err := m.cache.Clear(ctx, KeyIdentity); err != nil {
		m.logger.Warn("logout failed to clear identity", "error", err)
	}

	m.mu.Lock()
	m.status = StatusUnauthenticated
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	return nil
}

// backgroundRefresh runs an identity fetch detached from the caller. It is
// bounded by the refresh timeout and its result is applied only if the
// session epoch has not moved on.
func (m *Manager) backgroundRefresh(epoch uint64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	identity, err := m.transport.FetchIdentity(ctx, token)
	m.applyRefresh(epoch, identity, err)
}

// applyRefresh folds a fetch result into the session. Stale epochs are
// discarded: a Logout that happened while the fetch was in flight already
// decided the outcome.
func (m *Manager) applyRefresh(epoch uint64, identity *Identity, err error) {
	m.mu.Lock()

	if epoch != m.epoch {
		m.mu.Unlock()
		m.logger.Debug("discarding stale refresh result", "epoch", epoch)
		return
	}

	if err != nil {
		if IsAuthError(err) || auth.IsIdentityNotFound(err) {
			// server rejected the session: fail closed
			m.epoch++
			m.token = ""
			m.identity = nil
			m.lastError = err
			m.refreshing = false
			m.status = StatusUnauthenticated
			snap := m.snapshotLocked()
			m.mu.Unlock()

			m.purge()
			m.publish(snap)
			return
		}

		// network or store outage: keep the last known good state
		m.lastError = err
		m.refreshing = false
		if m.identity != nil && m.token != "" {
			m.status = StatusAuthenticated
		} else {
			m.status = StatusUnauthenticated
		}
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.publish(snap)
		return
	}

	m.identity = identity
	m.lastError = nil
	m.refreshing = false
	m.status = StatusAuthenticated
	token := m.token
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.persistSession(context.Background(), token, identity, "")
	m.publish(snap)
}

// settle moves the session to a terminal status if the epoch still matches.
func (m *Manager) settle(epoch uint64, status Status, lastErr error) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.status = status
	m.lastError = lastErr
	m.refreshing = false
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// persistSession writes the session state through to the cache. Failures
// are logged, not fatal: the in-memory session stays usable either way.
func (m *Manager) persistSession(ctx context.Context, token string, identity *Identity, emailHint string) {
	if token != "" {
		if err := m.cache.Set(ctx, KeyToken, []byte(token)); err != nil {
			m.logger.Warn("failed to persist token", "error", err)
		}
	}

	if identity != nil {
		if data, err := identity.Encode(); err == nil {
			if err := m.cache.Set(ctx, KeyIdentity, data); err != nil {
				m.logger.Warn("failed to persist identity", "error", err)
			}
		}
	}

	if emailHint != "" {
		if err := m.cache.Set(ctx, KeyLastEmail, []byte(emailHint)); err != nil {
			m.logger.Warn("failed to persist email hint", "error", err)
		}
	}
}

func (m *Manager) purge() {
	ctx := context.Background()
	if err := m.cache.Clear(ctx, KeyToken); err != nil {
		m.logger.Warn("failed to purge token", "error", err)
	}
	if err := m.cache.Clear(ctx, KeyIdentity); err != nil {
		m.logger.Warn("failed to purge identity", "error", err)
	}
}

func (m *Manager) transitionLocked(to Status) error {
	allowed, ok := m.transitions[m.status]
	if !ok {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": m.status,
			"to":   to,
		})
	}
	if _, ok := allowed[to]; !ok {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": m.status,
			"to":   to,
		})
	}
	m.status = to
	return nil
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     m.status,
		Token:      m.token,
		Identity:   m.identity,
		Refreshing: m.refreshing,
		LastError:  m.lastError,
		Epoch:      m.epoch,
	}
}

func (m *Manager) publish(snap Snapshot) {
	m.mu.Lock()
	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
