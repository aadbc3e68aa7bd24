// Package convert maps domain types to stored documents and wire messages.
package convert

import (
	"fmt"

	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
)

// Profile document field names.
const (
	FieldID         = "uid"
	FieldFullName   = "fullname"
	FieldEmail      = "email"
	FieldPictureURL = "profilePicURL"
)

// ToDocument converts a profile into its stored document form.
func ToDocument(p model.Profile) repository.Document {
	doc := repository.Document{
		FieldID:       p.ID,
		FieldFullName: p.FullName,
		FieldEmail:    p.Email,
	}
	if p.PictureURL != nil {
		doc[FieldPictureURL] = *p.PictureURL
	}
	return doc
}

// FromDocument converts a stored document back into a profile owned by id.
func FromDocument(id string, doc repository.Document) (model.Profile, error) {
	p := model.Profile{ID: id}
	if v, ok := doc[FieldID].(string); ok && v != "" && v != id {
		return model.Profile{}, fmt.Errorf("document %s: owner mismatch (%s)", id, v)
	}
	var ok bool
	if p.FullName, ok = doc[FieldFullName].(string); !ok {
		return model.Profile{}, fmt.Errorf("document %s: missing %s", id, FieldFullName)
	}
	if p.Email, ok = doc[FieldEmail].(string); !ok {
		return model.Profile{}, fmt.Errorf("document %s: missing %s", id, FieldEmail)
	}
	if v, ok := doc[FieldPictureURL].(string); ok && v != "" {
		p.PictureURL = &v
	}
	return p, nil
}

// PictureFields is the partial update that links a picture URL.
func PictureFields(url string) repository.Document {
	return repository.Document{FieldPictureURL: url}
}
