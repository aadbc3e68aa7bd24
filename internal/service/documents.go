package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/profilekeeper/internal/convert"
	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
)

// DocumentService exposes profile documents and asset storage to their owners.
type DocumentService interface {
	// GetProfile returns the caller's document, ok=false when none exists.
	GetProfile(ctx context.Context, p model.Principal, id string) (repository.Document, bool, error)
	// SetProfile writes the caller's whole document.
	SetProfile(ctx context.Context, p model.Principal, id string, doc repository.Document) error
	// UpdateProfile merges fields into the caller's existing document.
	UpdateProfile(ctx context.Context, p model.Principal, id string, fields repository.Document) error
	// PutAsset stores a blob and returns its URL.
	PutAsset(ctx context.Context, p model.Principal, key string, data []byte) (string, error)
}

// Allower grants or denies one event for a subject.
type Allower interface {
	Allow(subject string) bool
}

// DocumentServiceImpl scopes profile and asset writes to the calling principal.
type DocumentServiceImpl struct {
	profiles repository.ProfileStore
	assets   repository.AssetStore
	uploads  Allower
	maxAsset int
	log      *zap.Logger
}

var _ DocumentService = (*DocumentServiceImpl)(nil)

// NewDocumentService constructs DocumentService. maxAsset caps a single blob in bytes.
func NewDocumentService(profiles repository.ProfileStore, assets repository.AssetStore, uploads Allower, maxAsset int, log *zap.Logger) *DocumentServiceImpl {
	if maxAsset <= 0 {
		maxAsset = 5 << 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentServiceImpl{profiles: profiles, assets: assets, uploads: uploads, maxAsset: maxAsset, log: log}
}

// owns rejects access to documents of other subjects.
func owns(p model.Principal, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", errs.ErrInvalidInput)
	}
	if id != p.UserID.String() {
		return errs.ErrPermissionDenied
	}
	return nil
}

// checkOwner rejects documents whose owner field names another subject.
func checkOwner(id string, doc repository.Document) error {
	if v, ok := doc[convert.FieldID]; ok {
		if s, _ := v.(string); s != id {
			return fmt.Errorf("%w: %s does not match id", errs.ErrInvalidInput, convert.FieldID)
		}
	}
	return nil
}

func (s *DocumentServiceImpl) GetProfile(ctx context.Context, p model.Principal, id string) (repository.Document, bool, error) {
	if err := owns(p, id); err != nil {
		return nil, false, err
	}
	return s.profiles.Get(ctx, id)
}

func (s *DocumentServiceImpl) SetProfile(ctx context.Context, p model.Principal, id string, doc repository.Document) error {
	if err := owns(p, id); err != nil {
		return err
	}
	if len(doc) == 0 {
		return fmt.Errorf("%w: empty document", errs.ErrInvalidInput)
	}
	if err := checkOwner(id, doc); err != nil {
		return err
	}
	return s.profiles.Set(ctx, id, doc)
}

func (s *DocumentServiceImpl) UpdateProfile(ctx context.Context, p model.Principal, id string, fields repository.Document) error {
	if err := owns(p, id); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", errs.ErrInvalidInput)
	}
	if err := checkOwner(id, fields); err != nil {
		return err
	}
	return s.profiles.Update(ctx, id, fields)
}

func (s *DocumentServiceImpl) PutAsset(ctx context.Context, p model.Principal, key string, data []byte) (string, error) {
	switch {
	case key == "":
		return "", fmt.Errorf("%w: empty key", errs.ErrInvalidInput)
	case len(data) == 0:
		return "", fmt.Errorf("%w: empty data", errs.ErrInvalidInput)
	case len(data) > s.maxAsset:
		return "", fmt.Errorf("%w: asset larger than %d bytes", errs.ErrInvalidInput, s.maxAsset)
	}
	if s.uploads != nil && !s.uploads.Allow(p.UserID.String()) {
		return "", errs.ErrRateLimited
	}
	url, err := s.assets.Put(ctx, key, data)
	if err != nil {
		return "", err
	}
	s.log.Debug("asset stored", zap.String("user_id", p.UserID.String()), zap.String("key", key), zap.Int("bytes", len(data)))
	return url, nil
}
