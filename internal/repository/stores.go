package repository

import "context"

// Document is a schemaless profile record as held by a ProfileStore.
type Document map[string]any

// ProfileStore is a document store keyed by subject id.
type ProfileStore interface {
	// Get returns the document, or ok=false when none exists.
	Get(ctx context.Context, id string) (doc Document, ok bool, err error)
	// Set writes the whole document, replacing any previous one.
	Set(ctx context.Context, id string, doc Document) error
	// Update merges fields into an existing document atomically.
	// It returns errs.ErrNotFound when the document does not exist.
	Update(ctx context.Context, id string, fields Document) error
}

// AssetStore is blob storage returning a retrievable URL per stored object.
type AssetStore interface {
	// Put stores data under key and returns its URL. Keys are never overwritten:
	// a reused key yields errs.ErrAlreadyExists.
	Put(ctx context.Context, key string, data []byte) (url string, err error)
}
