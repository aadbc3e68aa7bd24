// Package profile reads and writes profile documents for a subject.
package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/profilekeeper/internal/convert"
	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
)

// Service defines profile operations scoped to a subject id.
type Service interface {
	// FetchProfile returns the stored profile or errs.ErrNotFound. It never creates one.
	FetchProfile(ctx context.Context, subjectID string) (*model.Profile, error)
	// CreateProfile stores a new profile, or returns the existing one unchanged.
	CreateProfile(ctx context.Context, subjectID, fullName, email string) (*model.Profile, error)
	// UpdatePictureURL links a picture to an existing profile.
	UpdatePictureURL(ctx context.Context, subjectID, url string) error
	// PictureURL returns the linked picture URL, "" when none.
	PictureURL(ctx context.Context, subjectID string) (string, error)
}

// ServiceImpl is the Service over a ProfileStore.
type ServiceImpl struct {
	store repository.ProfileStore
	log   *zap.Logger
}

var _ Service = (*ServiceImpl)(nil)

// NewService constructs a profile service over store.
func NewService(store repository.ProfileStore, log *zap.Logger) *ServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ServiceImpl{store: store, log: log}
}

// FetchProfile loads and decodes the subject's document.
func (s *ServiceImpl) FetchProfile(ctx context.Context, subjectID string) (*model.Profile, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: empty subject id", errs.ErrInvalidInput)
	}
	doc, ok, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	p, err := convert.FromDocument(subjectID, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStore, err)
	}
	return &p, nil
}

// CreateProfile is idempotent per subject id.
func (s *ServiceImpl) CreateProfile(ctx context.Context, subjectID, fullName, email string) (*model.Profile, error) {
	p := model.Profile{ID: subjectID, FullName: fullName, Email: email}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.FetchProfile(ctx, subjectID)
	switch {
	case err == nil:
		s.log.Debug("profile exists, create is a no-op", zap.String("subject", subjectID))
		return existing, nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}
	if err := s.store.Set(ctx, subjectID, convert.ToDocument(p)); err != nil {
		return nil, storeErr("set profile", err)
	}
	return &p, nil
}

// UpdatePictureURL writes only the picture field, as one partial update.
func (s *ServiceImpl) UpdatePictureURL(ctx context.Context, subjectID, url string) error {
	if subjectID == "" || url == "" {
		return fmt.Errorf("%w: empty subject id/url", errs.ErrInvalidInput)
	}
	if err := s.store.Update(ctx, subjectID, convert.PictureFields(url)); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound
		}
		return storeErr("update picture url", err)
	}
	return nil
}

// PictureURL returns the linked picture URL.
func (s *ServiceImpl) PictureURL(ctx context.Context, subjectID string) (string, error) {
	p, err := s.FetchProfile(ctx, subjectID)
	if err != nil {
		return "", err
	}
	return p.Picture(), nil
}

// storeErr tags opaque store failures with errs.ErrStore, keeping the cause in the chain.
func storeErr(step string, err error) error {
	if errors.Is(err, errs.ErrStore) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, errs.ErrStore, err)
}
