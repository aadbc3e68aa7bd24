package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
)

type fakeProfiles struct {
	docs map[string]repository.Document
}

var _ repository.ProfileStore = (*fakeProfiles)(nil)

func (f *fakeProfiles) Get(_ context.Context, id string) (repository.Document, bool, error) {
	d, ok := f.docs[id]
	return d, ok, nil
}
func (f *fakeProfiles) Set(_ context.Context, id string, doc repository.Document) error {
	f.docs[id] = doc
	return nil
}
func (f *fakeProfiles) Update(_ context.Context, id string, fields repository.Document) error {
	d, ok := f.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	for k, v := range fields {
		d[k] = v
	}
	return nil
}

type fakeBlobs struct{ keys map[string][]byte }

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte) (string, error) {
	if _, ok := f.keys[key]; ok {
		return "", errs.ErrAlreadyExists
	}
	f.keys[key] = data
	return "http://assets/" + key, nil
}

type allowN struct{ left int }

func (a *allowN) Allow(string) bool {
	a.left--
	return a.left >= 0
}

func newDocEnv(uploads int) (*DocumentServiceImpl, *fakeProfiles, model.Principal) {
	profiles := &fakeProfiles{docs: map[string]repository.Document{}}
	s := NewDocumentService(profiles, &fakeBlobs{keys: map[string][]byte{}}, &allowN{left: uploads}, 16, nil)
	return s, profiles, model.Principal{UserID: uuid.Must(uuid.NewV4()), TokenID: "jti"}
}

func TestDocuments_OwnerOnly(t *testing.T) {
	t.Parallel()
	s, _, p := newDocEnv(1)
	ctx := context.Background()
	other := uuid.Must(uuid.NewV4()).String()

	if _, _, err := s.GetProfile(ctx, p, other); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("get foreign: %v", err)
	}
	if err := s.SetProfile(ctx, p, other, repository.Document{"a": 1}); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("set foreign: %v", err)
	}
	if err := s.UpdateProfile(ctx, p, other, repository.Document{"a": 1}); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("update foreign: %v", err)
	}
	if _, _, err := s.GetProfile(ctx, p, ""); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty id: %v", err)
	}
}

func TestDocuments_SetGetUpdate(t *testing.T) {
	t.Parallel()
	s, _, p := newDocEnv(1)
	ctx := context.Background()
	id := p.UserID.String()

	if _, ok, err := s.GetProfile(ctx, p, id); err != nil || ok {
		t.Fatalf("fresh get: ok=%v err=%v", ok, err)
	}
	if err := s.UpdateProfile(ctx, p, id, repository.Document{"profilePicURL": "u"}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := s.SetProfile(ctx, p, id, repository.Document{"uid": "someone-else"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("owner mismatch: %v", err)
	}
	if err := s.SetProfile(ctx, p, id, repository.Document{}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty doc: %v", err)
	}
	if err := s.SetProfile(ctx, p, id, repository.Document{"uid": id, "fullname": "Ada"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateProfile(ctx, p, id, repository.Document{"profilePicURL": "u"}); err != nil {
		t.Fatal(err)
	}
	doc, ok, err := s.GetProfile(ctx, p, id)
	if err != nil || !ok || doc["profilePicURL"] != "u" || doc["fullname"] != "Ada" {
		t.Fatalf("doc=%v ok=%v err=%v", doc, ok, err)
	}
}

func TestDocuments_PutAsset(t *testing.T) {
	t.Parallel()
	s, _, p := newDocEnv(2)
	ctx := context.Background()

	if _, err := s.PutAsset(ctx, p, "", []byte("x")); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty key: %v", err)
	}
	if _, err := s.PutAsset(ctx, p, "k", nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty data: %v", err)
	}
	if _, err := s.PutAsset(ctx, p, "k", make([]byte, 17)); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("too large: %v", err)
	}

	url, err := s.PutAsset(ctx, p, "profile_pics/A.png", []byte("img"))
	if err != nil || url != "http://assets/profile_pics/A.png" {
		t.Fatalf("url=%q err=%v", url, err)
	}
	if _, err := s.PutAsset(ctx, p, "profile_pics/A.png", []byte("img")); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("key reuse: %v", err)
	}
	if _, err := s.PutAsset(ctx, p, "profile_pics/B.png", []byte("img")); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want rate limited, got %v", err)
	}
}
