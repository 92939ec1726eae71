package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// fakeStore is an in-memory LedgerStore and AccountStore.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	users      []core.User
	sessions   map[string]fakeSession
	categories []core.Category
	txs        []core.Transaction
	subs       []core.Subscription

	listErr error
}

type fakeSession struct {
	userID    int64
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]fakeSession{}}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) EnsureCategory(_ context.Context, c core.Category) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name && existing.Kind == c.Kind {
			return false, nil
		}
	}
	c.ID = f.id()
	f.categories = append(f.categories, c)
	return true, nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	created, _ := f.EnsureCategory(ctx, c)
	if !created {
		return core.Category{}, storage.ErrDuplicate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories[len(f.categories)-1], nil
}

func (f *fakeStore) GetCategory(_ context.Context, userID, id int64) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.ID == id && c.UserID == userID {
			return c, nil
		}
	}
	return core.Category{}, storage.ErrNotFound
}

func (f *fakeStore) ListCategories(_ context.Context, userID int64, kind *core.Kind) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Category
	for _, c := range f.categories {
		if c.UserID == userID && (kind == nil || c.Kind == *kind) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, userID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID == id && c.UserID == userID {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id()
	t.CreatedAt = time.Now()
	f.txs = append(f.txs, t)
	return t, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, userID int64) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.Transaction
	for _, t := range f.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSubscription(_ context.Context, s core.Subscription) (core.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id()
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeStore) ListActiveSubscriptions(_ context.Context, userID int64) ([]core.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Subscription
	for _, s := range f.subs {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUser(_ context.Context, u core.User) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return core.User{}, storage.ErrDuplicate
		}
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("%w: %w", storage.ErrDuplicate, storage.ErrEmailTaken)
		}
	}
	u.ID = f.id()
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeStore) findUser(match func(core.User) bool) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (f *fakeStore) UserByUsername(_ context.Context, username string) (core.User, error) {
	return f.findUser(func(u core.User) bool { return strings.EqualFold(u.Username, username) })
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (core.User, error) {
	return f.findUser(func(u core.User) bool { return strings.EqualFold(u.Email, email) })
}

func (f *fakeStore) CreateSession(_ context.Context, token string, userID int64, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[token] = fakeSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) SessionUser(_ context.Context, token string, now time.Time) (core.User, error) {
	f.mu.Lock()
	sess, ok := f.sessions[token]
	f.mu.Unlock()
	if !ok || !now.Before(sess.expiresAt) {
		return core.User{}, storage.ErrNotFound
	}
	return f.findUser(func(u core.User) bool { return u.ID == sess.userID })
}

func (f *fakeStore) DeleteSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) categoryByName(userID int64, name string) core.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.UserID == userID && c.Name == name {
			return c
		}
	}
	return core.Category{}
}

type fakePublisher struct {
	mu        sync.Mutex
	published []int64
	err       error
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, id, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, id)
	return nil
}

var errBoom = errors.New("boom")
