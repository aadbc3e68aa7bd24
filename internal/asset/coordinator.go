// Package asset turns a picture into a stored URL linked to a profile.
//
// Upload and link are separate steps: a task that failed to link keeps its URL
// and can be linked again without storing the picture a second time.
package asset

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
)

// KeyPrefix is the storage folder for profile pictures.
const KeyPrefix = "profile_pics/"

// Linker persists a picture URL on a profile.
type Linker interface {
	UpdatePictureURL(ctx context.Context, subjectID, url string) error
}

// Coordinator runs upload tasks. It is safe for concurrent use; each task is
// owned by the call that created it.
type Coordinator struct {
	store  repository.AssetStore
	linker Linker
	log    *zap.Logger
	newKey func(ext string) (string, error)
}

// NewCoordinator constructs a coordinator.
func NewCoordinator(store repository.AssetStore, linker Linker, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{store: store, linker: linker, log: log, newKey: randomKey}
}

// Upload validates the picture, stores it under a fresh key and links it.
// On upload failure the task is failed and the linker is never called.
// On link failure the task stays uploaded and a *errs.LinkError carries the URL;
// pass the task to Link to retry.
func (c *Coordinator) Upload(ctx context.Context, profileID string, image []byte) (*model.AssetUploadTask, error) {
	if profileID == "" {
		return nil, fmt.Errorf("%w: empty profile id", errs.ErrInvalidInput)
	}
	ctype, ext, err := sniff(image)
	if err != nil {
		return nil, err
	}
	key, err := c.newKey(ext)
	if err != nil {
		return nil, fmt.Errorf("asset key: %w", err)
	}
	task := &model.AssetUploadTask{
		Key:             key,
		TargetProfileID: profileID,
		Image:           image,
		ContentType:     ctype,
		State:           model.TaskPending,
	}

	url, err := c.store.Put(ctx, key, image)
	if err != nil {
		_ = task.Advance(model.TaskFailed)
		c.log.Warn("asset upload failed", zap.String("key", key), zap.Error(err))
		return task, &errs.UploadError{Key: key, Err: err}
	}
	task.URL = url
	if err := task.Advance(model.TaskUploaded); err != nil {
		return task, err
	}
	c.log.Debug("asset uploaded", zap.String("key", key), zap.Int("bytes", len(image)))

	return task, c.Link(ctx, task)
}

// Link writes an uploaded task's URL to its profile. It performs no upload.
func (c *Coordinator) Link(ctx context.Context, task *model.AssetUploadTask) error {
	if task == nil || task.State != model.TaskUploaded || task.URL == "" {
		state := "nil"
		if task != nil {
			state = task.State.String()
		}
		return fmt.Errorf("%w: task not linkable (state %s)", errs.ErrInvalidInput, state)
	}
	if err := c.linker.UpdatePictureURL(ctx, task.TargetProfileID, task.URL); err != nil {
		c.log.Warn("asset link failed", zap.String("key", task.Key), zap.Error(err))
		return &errs.LinkError{URL: task.URL, Err: err}
	}
	return task.Advance(model.TaskLinked)
}

// sniff rejects empty input and anything that is not an image.
func sniff(image []byte) (contentType, ext string, err error) {
	if len(image) == 0 {
		return "", "", fmt.Errorf("%w: empty image", errs.ErrInvalidAsset)
	}
	ct := http.DetectContentType(image)
	if !strings.HasPrefix(ct, "image/") {
		return "", "", fmt.Errorf("%w: content type %s", errs.ErrInvalidAsset, ct)
	}
	switch ct {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	case "image/bmp":
		ext = ".bmp"
	}
	return ct, ext, nil
}

func randomKey(ext string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return KeyPrefix + strings.ToUpper(id.String()) + ext, nil
}
