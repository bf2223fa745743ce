package repository

import (
	"context"

	"idvault/internal/model"
)

// Package repository contains the metadata data-access layer.
// Implementations live in subpackages (e.g. postgres) inside this directory.

// ObjectRepository defines data access for stored-object metadata using SQL
// queries only. No business logic here — strictly persistence operations.
//
// A row exists only for fully finalized objects: the ingest layer inserts
// after the blob write completed, so readers never see partial uploads.
type ObjectRepository interface {
	// Create inserts a new stored-object record and returns the stored row
	// (may include values set by the database).
	Create(ctx context.Context, obj *model.StoredObject) (*model.StoredObject, error)

	// FindByFilename returns the object with the given store-unique filename.
	// Misses surface as sql.ErrNoRows for the service layer to translate.
	FindByFilename(ctx context.Context, filename string) (*model.StoredObject, error)

	// ListAll returns metadata for every stored object, newest first.
	// Diagnostic surface only; deliberately unpaginated.
	ListAll(ctx context.Context) ([]model.StoredObject, error)
}
