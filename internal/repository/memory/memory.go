// Package memory implements the repositories in process memory. pk-server
// uses it when no database is configured; state is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
)

// Profiles is an in-memory ProfileStore.
type Profiles struct {
	mu   sync.RWMutex
	docs map[string]repository.Document
}

var _ repository.ProfileStore = (*Profiles)(nil)

// NewProfiles returns an empty store.
func NewProfiles() *Profiles { return &Profiles{docs: map[string]repository.Document{}} }

func (p *Profiles) Get(_ context.Context, id string) (repository.Document, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.docs[id]
	if !ok {
		return nil, false, nil
	}
	return clone(d), true, nil
}

func (p *Profiles) Set(_ context.Context, id string, doc repository.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[id] = clone(doc)
	return nil
}

func (p *Profiles) Update(_ context.Context, id string, fields repository.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	for k, v := range clone(fields) {
		d[k] = v
	}
	return nil
}

func (p *Profiles) delete(id string) {
	p.mu.Lock()
	delete(p.docs, id)
	p.mu.Unlock()
}

// Users is an in-memory UserRepository. Deleting a user also deletes its
// document from profiles.
type Users struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]model.User
	byEmail  map[string]uuid.UUID
	profiles *Profiles
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers returns an empty repository bound to profiles.
func NewUsers(profiles *Profiles) *Users {
	return &Users{byID: map[uuid.UUID]model.User{}, byEmail: map[string]uuid.UUID{}, profiles: profiles}
}

func (r *Users) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return errs.ErrAlreadyExists
	}
	if _, ok := r.byID[u.ID]; ok {
		return errs.ErrAlreadyExists
	}
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *Users) UpdatePassword(_ context.Context, id uuid.UUID, pwdHash, saltAuth []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PwdHash, u.SaltAuth = pwdHash, saltAuth
	r.byID[id] = u
	return nil
}

func (r *Users) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	if r.profiles != nil {
		r.profiles.delete(id.String())
	}
	return nil
}

// clone deep-copies the map and slice values a decoded document can hold.
func clone(d repository.Document) repository.Document {
	out := make(repository.Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(clone(t))
	case repository.Document:
		return clone(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
