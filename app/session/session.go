package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lxidea/whut-portal/app/portal"
)

// DefaultBootTimeout bounds the identity check issued for a persisted token
// at start-up.
const DefaultBootTimeout = 3 * time.Second

var (
	ErrNotInitialized       = errors.New("session is not initialized")
	ErrAlreadyInitialized   = errors.New("session is already initialized")
	ErrAlreadyAuthenticated = errors.New("already logged in, log out first")
	ErrClosed               = errors.New("session is closed")
)

type State int

const (
	Uninitialized State = iota
	Anonymous
	Validating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Anonymous:
		return "anonymous"
	case Validating:
		return "validating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, r portal.RegisterRequest) (*portal.User, error)
	CurrentUser(ctx context.Context, token string) (*portal.User, error)
}

var _ AuthAPI = (*portal.Client)(nil)

type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Snapshot is a read-only copy of the session at one point in time.
type Snapshot struct {
	State State
	User  *portal.User
	Token string
	Err   string
}

func (s Snapshot) Authenticated() bool {
	return s.State == Authenticated
}

// Session is the single source of truth for the current user and bearer
// token. Transitions are serialised; reads never wait on network calls.
type Session struct {
	api         AuthAPI
	store       TokenStore
	bootTimeout time.Duration

	opMu sync.Mutex

	mu      sync.RWMutex
	state   State
	user    *portal.User
	token   string
	lastErr string
	closed  bool

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func New(api AuthAPI, store TokenStore, bootTimeout time.Duration) *Session {
	if bootTimeout <= 0 {
		bootTimeout = DefaultBootTimeout
	}
	return &Session{
		api:         api,
		store:       store,
		bootTimeout: bootTimeout,
		subs:        make(map[int]func(Snapshot)),
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Token: s.token, Err: s.lastErr}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the bearer token of an authenticated session, "" otherwise.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return ""
	}
	return s.token
}

// Subscribe registers fn for every state change. fn runs on the goroutine
// that performed the transition, after the session lock is released.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) set(state State, token string, user *portal.User, lastErr string) {
	s.mu.Lock()
	s.state = state
	s.token = token
	s.user = user
	s.lastErr = lastErr
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(snap)
}

func (s *Session) broadcast(snap Snapshot) {
	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == Uninitialized {
		return ErrNotInitialized
	}
	return nil
}

// Init restores the persisted token, if any, and validates it under the
// boot timeout. A rejected, unreachable or slow identity check clears the
// token and leaves the session anonymous; it is not an error for the caller.
func (s *Session) Init(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	state, closed := s.state, s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if state != Uninitialized {
		return ErrAlreadyInitialized
	}

	token, err := s.store.LoadToken(ctx)
	if err != nil {
		s.set(Anonymous, "", nil, "")
		return fmt.Errorf("failed to read persisted token: %w", err)
	}

	if token == "" {
		slog.Debug("No persisted token, starting anonymous")
		s.set(Anonymous, "", nil, "")
		return nil
	}

	s.set(Validating, token, nil, "")
	s.validate(ctx, token)
	return nil
}

// validate resolves token to a user or drops it. Caller holds opMu.
func (s *Session) validate(ctx context.Context, token string) {
	checkCtx, cancel := context.WithTimeout(ctx, s.bootTimeout)
	defer cancel()

	user, err := s.api.CurrentUser(checkCtx, token)
	if err != nil {
		slog.Warn("Persisted token rejected, clearing", "error", err)
		if clearErr := s.store.ClearToken(ctx); clearErr != nil {
			slog.Error("Failed to clear persisted token", "error", clearErr)
		}
		s.set(Anonymous, "", nil, "")
		return
	}

	slog.Info("Session restored", "user", user.Username)
	s.set(Authenticated, token, user, "")
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.State() == Authenticated {
		return ErrAlreadyAuthenticated
	}

	return s.login(ctx, username, password)
}

// login is the Anonymous -> Authenticated transition. Caller holds opMu.
func (s *Session) login(ctx context.Context, username, password string) error {
	token, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.fail(err)
		return fmt.Errorf("login failed: %w", err)
	}

	if err := s.store.SaveToken(ctx, token); err != nil {
		s.fail(err)
		return fmt.Errorf("failed to persist token: %w", err)
	}

	user, err := s.api.CurrentUser(ctx, token)
	if err != nil {
		if clearErr := s.store.ClearToken(ctx); clearErr != nil {
			slog.Error("Failed to clear persisted token", "error", clearErr)
		}
		s.fail(err)
		return fmt.Errorf("failed to load user after login: %w", err)
	}

	slog.Info("Logged in", "user", user.Username)
	s.set(Authenticated, token, user, "")
	return nil
}

// fail records a user facing error and leaves the session anonymous.
func (s *Session) fail(err error) {
	s.set(Anonymous, "", nil, portal.ErrorMessage(err))
}

// Register creates the account and then logs in with the same credentials.
// A failed registration never attempts the login.
func (s *Session) Register(ctx context.Context, r portal.RegisterRequest) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.State() == Authenticated {
		return ErrAlreadyAuthenticated
	}

	if _, err := s.api.Register(ctx, r); err != nil {
		s.fail(err)
		return fmt.Errorf("registration failed: %w", err)
	}

	return s.login(ctx, r.Username, r.Password)
}

func (s *Session) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.store.ClearToken(ctx)
	s.set(Anonymous, "", nil, "")
	if err != nil {
		return fmt.Errorf("failed to clear persisted token: %w", err)
	}

	slog.Info("Logged out")
	return nil
}

// Reject handles a backend 401/403 for token. It is a no-op when the
// session already moved on to another token.
func (s *Session) Reject(ctx context.Context, token string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	current := s.token
	s.mu.RUnlock()
	if token == "" || token != current {
		return
	}

	slog.Warn("Token rejected by backend, session ended")
	if err := s.store.ClearToken(ctx); err != nil {
		slog.Error("Failed to clear persisted token", "error", err)
	}
	s.set(Anonymous, "", nil, "session expired, please log in again")
}

// Sync reconciles with the persisted token, which another process sharing
// the same state file may have replaced or removed.
func (s *Session) Sync(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	persisted, err := s.store.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read persisted token: %w", err)
	}

	s.mu.RLock()
	current := s.token
	s.mu.RUnlock()
	if persisted == current {
		return nil
	}

	if persisted == "" {
		slog.Info("Persisted token removed externally, session ended")
		s.set(Anonymous, "", nil, "")
		return nil
	}

	slog.Info("Persisted token changed externally, revalidating")
	s.set(Validating, persisted, nil, "")
	s.validate(ctx, persisted)
	return nil
}

// Close drops all subscribers. The session refuses transitions afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subsMu.Lock()
	s.subs = make(map[int]func(Snapshot))
	s.subsMu.Unlock()
}
