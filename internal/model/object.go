package model

import "time"

// StoredObject represents one uploaded identity-document image.
// This is a pure domain model with no database-specific dependencies or tags.
// An object is immutable once its write stream has been finalized: a repeat
// upload always produces a new StoredObject, never an update in place.
type StoredObject struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	StoragePath string         `json:"storagePath"`
	Size        int64          `json:"size"`
	ContentType string         `json:"contentType"`
	Metadata    ObjectMetadata `json:"metadata"`
}

// ObjectMetadata carries the caller-supplied upload metadata.
// JSON keys match the browser client contract and must not change.
type ObjectMetadata struct {
	// DocumentType is the caller-supplied document slot tag (e.g. "nid").
	DocumentType string `json:"type"`
	// UploadDate is the ingest instant, set by the service.
	UploadDate time.Time `json:"uploadDate"`
	// MirrorPath is the local-disk mirror copy path, empty when the
	// mirror sink is disabled or its write failed.
	MirrorPath string `json:"localPath,omitempty"`
}
