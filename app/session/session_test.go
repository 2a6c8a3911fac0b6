package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxidea/whut-portal/app/portal"
)

type fakeAPI struct {
	mu sync.Mutex

	users       map[string]*portal.User // token -> user
	passwords   map[string]string       // username -> password
	registerErr error
	userErr     error
	blockUser   bool

	loginCalls    int
	registerCalls int
	userCalls     int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users:     map[string]*portal.User{},
		passwords: map[string]string{},
	}
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++

	if p, ok := f.passwords[username]; !ok || p != password {
		return "", &portal.StatusError{Op: "login", StatusCode: http.StatusUnauthorized, Detail: "Incorrect username or password"}
	}
	token := "tok-" + username
	f.users[token] = &portal.User{ID: 1, Username: username, IsActive: true}
	return token, nil
}

func (f *fakeAPI) Register(ctx context.Context, r portal.RegisterRequest) (*portal.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++

	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.passwords[r.Username] = r.Password
	return &portal.User{ID: 2, Username: r.Username, Email: r.Email}, nil
}

func (f *fakeAPI) CurrentUser(ctx context.Context, token string) (*portal.User, error) {
	f.mu.Lock()
	f.userCalls++
	block, userErr := f.blockUser, f.userErr
	user, ok := f.users[token]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &portal.NetworkError{Op: "current user", Err: ctx.Err()}
	}
	if userErr != nil {
		return nil, userErr
	}
	if !ok {
		return nil, &portal.StatusError{Op: "current user", StatusCode: http.StatusUnauthorized, Detail: "Could not validate credentials"}
	}
	return user, nil
}

func persisted(t *testing.T, store TokenStore) string {
	t.Helper()
	token, err := store.LoadToken(context.Background())
	require.NoError(t, err)
	return token
}

func TestInitWithoutTokenSkipsNetwork(t *testing.T) {
	api := newFakeAPI()
	s := New(api, NewMemoryTokenStore(""), 0)

	require.NoError(t, s.Init(context.Background()))

	assert.Equal(t, Anonymous, s.State())
	assert.Equal(t, 0, api.userCalls)
	assert.Empty(t, s.Token())
}

func TestInitRestoresValidToken(t *testing.T) {
	api := newFakeAPI()
	api.users["good"] = &portal.User{ID: 7, Username: "alice"}
	s := New(api, NewMemoryTokenStore("good"), 0)

	require.NoError(t, s.Init(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, "alice", snap.User.Username)
	assert.Equal(t, "good", s.Token())
}

func TestInitClearsRejectedToken(t *testing.T) {
	store := NewMemoryTokenStore("stale")
	s := New(newFakeAPI(), store, 0)

	require.NoError(t, s.Init(context.Background()))

	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, persisted(t, store))
}

func TestInitTimeoutClearsToken(t *testing.T) {
	api := newFakeAPI()
	api.blockUser = true
	store := NewMemoryTokenStore("slow")
	s := New(api, store, 50*time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Init(context.Background()))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, persisted(t, store))
}

func TestInitTwice(t *testing.T) {
	s := New(newFakeAPI(), NewMemoryTokenStore(""), 0)
	require.NoError(t, s.Init(context.Background()))
	assert.ErrorIs(t, s.Init(context.Background()), ErrAlreadyInitialized)
}

func TestOperationsRequireInit(t *testing.T) {
	s := New(newFakeAPI(), NewMemoryTokenStore(""), 0)
	assert.ErrorIs(t, s.Login(context.Background(), "a", "b"), ErrNotInitialized)
	assert.ErrorIs(t, s.Logout(context.Background()), ErrNotInitialized)
}

func TestLoginPersistsToken(t *testing.T) {
	api := newFakeAPI()
	api.passwords["bob"] = "secret"
	store := NewMemoryTokenStore("")
	s := New(api, store, 0)
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, s.Login(context.Background(), "bob", "secret"))

	assert.Equal(t, Authenticated, s.State())
	assert.Equal(t, "tok-bob", persisted(t, store))
	assert.Equal(t, "bob", s.Snapshot().User.Username)

	assert.ErrorIs(t, s.Login(context.Background(), "bob", "secret"), ErrAlreadyAuthenticated)
}

func TestLoginFailureKeepsAnonymous(t *testing.T) {
	store := NewMemoryTokenStore("")
	s := New(newFakeAPI(), store, 0)
	require.NoError(t, s.Init(context.Background()))

	err := s.Login(context.Background(), "bob", "wrong")
	require.Error(t, err)
	assert.True(t, portal.IsUnauthorized(err))

	snap := s.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Equal(t, "Incorrect username or password", snap.Err)
	assert.Empty(t, persisted(t, store))
}

func TestLoginIdentityFailureClearsToken(t *testing.T) {
	api := newFakeAPI()
	api.passwords["bob"] = "secret"
	api.userErr = &portal.StatusError{Op: "current user", StatusCode: http.StatusInternalServerError}
	store := NewMemoryTokenStore("")
	s := New(api, store, 0)
	require.NoError(t, s.Init(context.Background()))

	err := s.Login(context.Background(), "bob", "secret")
	require.Error(t, err)
	assert.True(t, portal.IsServerError(err))
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, persisted(t, store))
	assert.Nil(t, s.Snapshot().User)
}

func TestRegisterLogsIn(t *testing.T) {
	api := newFakeAPI()
	s := New(api, NewMemoryTokenStore(""), 0)
	require.NoError(t, s.Init(context.Background()))

	err := s.Register(context.Background(), portal.RegisterRequest{
		Username: "carol", Email: "carol@whut.edu.cn", Password: "pw123456",
	})
	require.NoError(t, err)

	assert.Equal(t, Authenticated, s.State())
	assert.Equal(t, 1, api.loginCalls)
}

func TestRegisterFailureSkipsLogin(t *testing.T) {
	api := newFakeAPI()
	api.registerErr = &portal.StatusError{Op: "register", StatusCode: http.StatusBadRequest, Detail: "Username already registered"}
	s := New(api, NewMemoryTokenStore(""), 0)
	require.NoError(t, s.Init(context.Background()))

	err := s.Register(context.Background(), portal.RegisterRequest{Username: "dup", Password: "x"})
	require.Error(t, err)
	assert.True(t, portal.IsValidation(err))
	assert.Equal(t, 0, api.loginCalls)
	assert.Equal(t, "Username already registered", s.Snapshot().Err)
}

func TestLogoutClearsEverything(t *testing.T) {
	api := newFakeAPI()
	api.users["good"] = &portal.User{Username: "alice"}
	store := NewMemoryTokenStore("good")
	s := New(api, store, 0)
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, s.Logout(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.Empty(t, persisted(t, store))
}

func TestRejectIgnoresOtherTokens(t *testing.T) {
	api := newFakeAPI()
	api.users["current"] = &portal.User{Username: "alice"}
	store := NewMemoryTokenStore("current")
	s := New(api, store, 0)
	require.NoError(t, s.Init(context.Background()))

	s.Reject(context.Background(), "older")
	assert.Equal(t, Authenticated, s.State())

	s.Reject(context.Background(), "current")
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, persisted(t, store))
	assert.NotEmpty(t, s.Snapshot().Err)
}

func TestSyncFollowsExternalChanges(t *testing.T) {
	api := newFakeAPI()
	api.users["one"] = &portal.User{Username: "alice"}
	api.users["two"] = &portal.User{Username: "bob"}
	store := NewMemoryTokenStore("one")
	s := New(api, store, 0)
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, store.SaveToken(context.Background(), "two"))
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, "bob", s.Snapshot().User.Username)

	require.NoError(t, store.ClearToken(context.Background()))
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, Anonymous, s.State())
}

func TestSubscribeObservesTransitions(t *testing.T) {
	api := newFakeAPI()
	api.users["good"] = &portal.User{Username: "alice"}
	s := New(api, NewMemoryTokenStore("good"), 0)

	var mu sync.Mutex
	var states []State
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, snap.State)
		// Reading the session from a subscriber must not deadlock.
		_ = s.Snapshot()
	})

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Logout(context.Background()))
	cancel()
	s.Reject(context.Background(), "ignored")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Validating, Authenticated, Anonymous}, states)
}

func TestClose(t *testing.T) {
	s := New(newFakeAPI(), NewMemoryTokenStore(""), 0)
	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })
	s.Close()

	assert.ErrorIs(t, s.Init(context.Background()), ErrClosed)
	assert.Equal(t, 0, calls)
}

type brokenStore struct{ MemoryTokenStore }

func (b *brokenStore) LoadToken(ctx context.Context) (string, error) {
	return "", errors.New("disk on fire")
}

func TestInitStoreFailure(t *testing.T) {
	s := New(newFakeAPI(), &brokenStore{}, 0)
	err := s.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, Anonymous, s.State())
}
