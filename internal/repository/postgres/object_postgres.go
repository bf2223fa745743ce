package postgres

import (
	"context"
	"database/sql"

	"idvault/internal/model"
	"idvault/internal/repository"
)

// ObjectPostgres is a PostgreSQL implementation of repository.ObjectRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ObjectPostgres struct {
	db *sql.DB
}

// NewObjectPostgres creates a new ObjectPostgres repository.
func NewObjectPostgres(db *sql.DB) *ObjectPostgres {
	return &ObjectPostgres{db: db}
}

var _ repository.ObjectRepository = (*ObjectPostgres)(nil)

const objectColumns = `id, filename, storage_path, size, content_type, document_type, upload_date, mirror_path`

// Create inserts a new stored-object row and returns the stored record.
// The UNIQUE constraint on filename rejects a duplicate key instead of
// silently merging two unrelated objects.
func (r *ObjectPostgres) Create(ctx context.Context, obj *model.StoredObject) (*model.StoredObject, error) {
	const q = `
		INSERT INTO stored_objects (id, filename, storage_path, size, content_type, document_type, upload_date, mirror_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + objectColumns
	var mirror sql.NullString
	if obj.Metadata.MirrorPath != "" {
		mirror = sql.NullString{String: obj.Metadata.MirrorPath, Valid: true}
	}
	row := r.db.QueryRowContext(ctx, q,
		obj.ID,
		obj.Filename,
		obj.StoragePath,
		obj.Size,
		obj.ContentType,
		obj.Metadata.DocumentType,
		obj.Metadata.UploadDate,
		mirror,
	)
	return scanObject(row)
}

// FindByFilename fetches a single object by its store-unique filename.
// The filename index makes this a point lookup, not a scan.
func (r *ObjectPostgres) FindByFilename(ctx context.Context, filename string) (*model.StoredObject, error) {
	const q = `
		SELECT ` + objectColumns + `
		FROM stored_objects
		WHERE filename = $1
	`
	return scanObject(r.db.QueryRowContext(ctx, q, filename))
}

// ListAll returns every stored object's metadata, newest first.
func (r *ObjectPostgres) ListAll(ctx context.Context) ([]model.StoredObject, error) {
	const q = `
		SELECT ` + objectColumns + `
		FROM stored_objects
		ORDER BY upload_date DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.StoredObject, 0)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (*model.StoredObject, error) {
	var (
		obj    model.StoredObject
		mirror sql.NullString
	)
	if err := row.Scan(
		&obj.ID,
		&obj.Filename,
		&obj.StoragePath,
		&obj.Size,
		&obj.ContentType,
		&obj.Metadata.DocumentType,
		&obj.Metadata.UploadDate,
		&mirror,
	); err != nil {
		return nil, err
	}
	if mirror.Valid {
		obj.Metadata.MirrorPath = mirror.String
	}
	return &obj, nil
}
