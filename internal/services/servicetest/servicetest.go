// Package servicetest provides in-memory implementations of the service
// dependencies for use in tests.
package servicetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/portfolio-cms/apiserver/internal/storage"
	"github.com/portfolio-cms/apiserver/internal/store"
	"github.com/portfolio-cms/apiserver/types"
)

// UserRepo is an in-memory user repository enforcing unique usernames.
type UserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[int]types.User)}
}

func (r *UserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(user.Username, 0) {
		return types.User{}, fmt.Errorf("%w: users_username_key", store.ErrAlreadyExists)
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	if r.taken(user.Username, user.ID) {
		return types.User{}, fmt.Errorf("%w: users_username_key", store.ErrAlreadyExists)
	}
	r.users[user.ID] = user
	return user, nil
}

// Remove deletes a user directly, bypassing the service layer.
func (r *UserRepo) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *UserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *UserRepo) taken(username string, exceptID int) bool {
	for id, user := range r.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}

// PlainHasher is a fast, non-cryptographic stand-in for the bcrypt hasher.
type PlainHasher struct{}

func (PlainHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }

func (PlainHasher) Verify(plaintext, hash string) bool { return hash == "hashed:"+plaintext }

// StubIssuer returns "token-<id>".
type StubIssuer struct{}

func (StubIssuer) Issue(userID int) (string, error) { return fmt.Sprintf("token-%d", userID), nil }

// ContentRepo is an in-memory repository for blogs or photos. Setting FailOn
// to "create" or "update" makes that operation fail.
type ContentRepo[T any] struct {
	FailOn string

	mu     sync.Mutex
	nextID int
	items  map[int]T
	getID  func(T) int
	setID  func(*T, int)
}

func NewBlogRepo() *ContentRepo[types.Blog] {
	return &ContentRepo[types.Blog]{
		items: make(map[int]types.Blog),
		getID: func(b types.Blog) int { return b.ID },
		setID: func(b *types.Blog, id int) { b.ID = id },
	}
}

func NewPhotoRepo() *ContentRepo[types.Photo] {
	return &ContentRepo[types.Photo]{
		items: make(map[int]types.Photo),
		getID: func(p types.Photo) int { return p.ID },
		setID: func(p *types.Photo, id int) { p.ID = id },
	}
}

// List returns items newest (highest id) first.
func (r *ContentRepo[T]) List(_ context.Context, offset, limit int) ([]T, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	total := len(ids)
	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.items[id])
	}
	return out, total, nil
}

func (r *ContentRepo[T]) Get(_ context.Context, id int) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	return item, nil
}

func (r *ContentRepo[T]) Create(_ context.Context, item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn == "create" {
		var zero T
		return zero, errors.New("insert failed")
	}
	r.nextID++
	r.setID(&item, r.nextID)
	r.items[r.nextID] = item
	return item, nil
}

func (r *ContentRepo[T]) Update(_ context.Context, item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn == "update" {
		var zero T
		return zero, errors.New("update failed")
	}
	id := r.getID(item)
	if _, ok := r.items[id]; !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	r.items[id] = item
	return item, nil
}

func (r *ContentRepo[T]) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *ContentRepo[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Objects is an in-memory object store.
type Objects struct {
	PutErr error

	mu      sync.Mutex
	objects map[string][]byte
}

func NewObjects() *Objects {
	return &Objects{objects: make(map[string][]byte)}
}

func (m *Objects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *Objects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Objects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Objects) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Publisher records published content events. A non-nil Err fails every
// publish.
type Publisher struct {
	Err error

	mu     sync.Mutex
	events []types.ContentEvent
}

func (p *Publisher) Publish(_ context.Context, evt types.ContentEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.events = append(p.events, evt)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

func (p *Publisher) Events() []types.ContentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.ContentEvent(nil), p.events...)
}
