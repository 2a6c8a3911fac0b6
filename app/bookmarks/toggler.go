package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/lxidea/whut-portal/app/portal"
	"github.com/lxidea/whut-portal/app/session"
)

var (
	ErrLoginRequired = errors.New("must log in to bookmark")
	ErrPending       = errors.New("bookmark change already in progress")
)

type API interface {
	ListBookmarks(ctx context.Context, token string) ([]portal.NewsItem, error)
	AddBookmark(ctx context.Context, newsID int, token string) error
	RemoveBookmark(ctx context.Context, newsID int, token string) error
}

var _ API = (*portal.Client)(nil)

// Session is the part of the auth session the toggler depends on.
type Session interface {
	Token() string
	Snapshot() session.Snapshot
	Reject(ctx context.Context, token string)
	Subscribe(fn func(session.Snapshot)) (cancel func())
}

var _ Session = (*session.Session)(nil)

// Toggler mirrors the user's bookmark set. The set is only ever replaced
// wholesale by a fetch from the backend, never patched locally.
type Toggler struct {
	api  API
	sess Session

	mu      sync.Mutex
	items   []portal.NewsItem
	ids     map[int]struct{}
	owner   string // token the current set was fetched with
	pending map[int]bool
	seq     uint64

	wg sync.WaitGroup
}

func NewToggler(api API, sess Session) *Toggler {
	return &Toggler{
		api:     api,
		sess:    sess,
		ids:     make(map[int]struct{}),
		pending: make(map[int]bool),
	}
}

// Toggle adds or removes newsID depending on its current membership and
// then re-fetches the whole set, whether or not the change succeeded. It
// reports the membership after the re-fetch.
func (t *Toggler) Toggle(ctx context.Context, newsID int) (bool, error) {
	token := t.sess.Token()
	if token == "" {
		return false, ErrLoginRequired
	}

	t.mu.Lock()
	if t.pending[newsID] {
		t.mu.Unlock()
		return false, ErrPending
	}
	t.pending[newsID] = true
	_, was := t.ids[newsID]
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, newsID)
		t.mu.Unlock()
	}()

	var err error
	if was {
		err = t.api.RemoveBookmark(ctx, newsID, token)
	} else {
		err = t.api.AddBookmark(ctx, newsID, token)
	}
	if err != nil {
		slog.Warn("Bookmark change failed", "news_id", newsID, "remove", was, "error", err)
		if portal.IsUnauthorized(err) {
			t.sess.Reject(ctx, token)
		}
	}

	// The session may have changed while the request was in flight; the
	// set always belongs to whoever is logged in now.
	refreshErr := t.refresh(ctx, t.sess.Token())
	if err != nil {
		return t.IsBookmarked(newsID), fmt.Errorf("failed to toggle bookmark %d: %w", newsID, err)
	}
	return t.IsBookmarked(newsID), refreshErr
}

// Refresh replaces the set with the backend's. An anonymous session has an
// empty set.
func (t *Toggler) Refresh(ctx context.Context) error {
	return t.refresh(ctx, t.sess.Token())
}

func (t *Toggler) refresh(ctx context.Context, token string) error {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.mu.Unlock()

	if token == "" {
		t.replace(seq, "", nil)
		return nil
	}

	items, err := t.api.ListBookmarks(ctx, token)
	if err != nil {
		if portal.IsUnauthorized(err) {
			t.sess.Reject(ctx, token)
			t.replace(seq, "", nil)
		}
		return fmt.Errorf("failed to load bookmarks: %w", err)
	}

	t.replace(seq, token, items)
	return nil
}

func (t *Toggler) replace(seq uint64, token string, items []portal.NewsItem) {
	current := t.sess.Token()

	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq {
		return
	}
	if token != "" && token != current {
		slog.Debug("Discarding bookmarks fetched for a previous session")
		return
	}
	t.items = items
	t.owner = token
	t.ids = make(map[int]struct{}, len(items))
	for _, item := range items {
		t.ids[item.ID] = struct{}{}
	}
}

// Watch keeps the set in step with the session until stop is called. An
// anonymous session empties the set at once; a new token triggers a fetch.
// A session that is already authenticated when Watch starts is fetched
// straight away.
func (t *Toggler) Watch(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	unsubscribe := t.sess.Subscribe(func(snap session.Snapshot) {
		t.follow(ctx, snap)
	})
	t.follow(ctx, t.sess.Snapshot())

	return func() {
		unsubscribe()
		cancel()
		t.wg.Wait()
	}
}

func (t *Toggler) follow(ctx context.Context, snap session.Snapshot) {
	switch snap.State {
	case session.Anonymous:
		t.mu.Lock()
		t.seq++
		seq := t.seq
		t.mu.Unlock()
		t.replace(seq, "", nil)
	case session.Authenticated:
		t.mu.Lock()
		same := snap.Token == t.owner
		t.mu.Unlock()
		if same {
			return
		}
		// Subscribers run inside a session transition, so the fetch must
		// not block it.
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.refresh(ctx, snap.Token); err != nil {
				slog.Warn("Bookmark refresh after session change failed", "error", err)
			}
		}()
	}
}

func (t *Toggler) IsBookmarked(newsID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[newsID]
	return ok
}

func (t *Toggler) Pending(newsID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[newsID]
}

// IDs returns the bookmarked news ids in ascending order.
func (t *Toggler) IDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Toggler) Items() []portal.NewsItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.items)
}
