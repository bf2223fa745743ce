package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"idvault/internal/model"
	"idvault/internal/repository"
	"idvault/internal/storage"
)

var (
	ErrNotFound  = errors.New("stored object not found")
	ErrReaderNil = errors.New("reader is nil")
	// ErrNotReady is returned when a call arrives before the store and
	// repository handles were wired in.
	ErrNotReady = errors.New("object store not initialized")
)

// ObjectService defines the use cases around stored identity-document images.
type ObjectService interface {
	// Ingest streams one upload into the blob store, mirrors it to local
	// disk when configured, and records its metadata. Every call creates a
	// new StoredObject; existing objects are never overwritten.
	// originalFilename is used only to extract the extension; the stored
	// filename is a collision-resistant upload-instant token plus extension.
	Ingest(ctx context.Context, r io.Reader, originalFilename, contentType, documentType string) (*model.StoredObject, error)

	// Get returns a stored object's metadata by its filename.
	Get(ctx context.Context, filename string) (*model.StoredObject, error)

	// Open returns a streamed reader over the object's bytes plus its
	// metadata. The caller owns the reader and must close it.
	Open(ctx context.Context, filename string) (io.ReadCloser, *model.StoredObject, error)

	// ListAll returns metadata for every stored object, bytes excluded.
	ListAll(ctx context.Context) ([]model.StoredObject, error)
}

// objectService is a concrete implementation of ObjectService.
type objectService struct {
	store  storage.BlobStore
	repo   repository.ObjectRepository
	mirror *storage.MirrorSink
}

// NewObjectService constructs a new ObjectService. mirror may be nil to
// disable the local-disk secondary sink.
func NewObjectService(store storage.BlobStore, repo repository.ObjectRepository, mirror *storage.MirrorSink) ObjectService {
	return &objectService{store: store, repo: repo, mirror: mirror}
}

// newFilenameToken derives the store-unique filename token for an upload
// instant. A bare millisecond timestamp can collide under fast concurrent
// uploads, so a short random suffix keeps tokens distinct even within one
// millisecond; the filename UNIQUE constraint backstops.
func newFilenameToken(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

func (s *objectService) Ingest(ctx context.Context, r io.Reader, originalFilename, contentType, documentType string) (*model.StoredObject, error) {
	if s.store == nil || s.repo == nil {
		return nil, ErrNotReady
	}
	if r == nil {
		return nil, ErrReaderNil
	}

	now := time.Now().UTC()
	filename := newFilenameToken(now) + filepath.Ext(originalFilename)
	key := filepath.ToSlash(filepath.Join("uploads", filename))

	h, err := s.store.OpenWrite(ctx, key, storage.WriteOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"document-type":     documentType,
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open store write: %w", err)
	}

	// Tee the incoming stream into the primary handle and, when configured,
	// a best-effort mirror file. The mirror is fed from the same single
	// pass; its failures are logged and swallowed.
	var (
		sink       io.Writer = h
		mirrorFile *storage.MirrorFile
		mirrorTee  *bestEffortWriter
	)
	if s.mirror != nil {
		mf, err := s.mirror.Create(filename)
		if err != nil {
			logMirrorFailure("mirror_open_failed", filename, err)
		} else {
			mirrorFile = mf
			mirrorTee = &bestEffortWriter{dst: mf}
			sink = io.MultiWriter(h, mirrorTee)
		}
	}

	if _, err := io.Copy(sink, r); err != nil {
		_ = h.Abort()
		if mirrorFile != nil {
			mirrorFile.Discard()
		}
		return nil, fmt.Errorf("write object stream: %w", err)
	}

	info, err := h.Close()
	if err != nil {
		if mirrorFile != nil {
			mirrorFile.Discard()
		}
		return nil, fmt.Errorf("finalize object: %w", err)
	}

	mirrorPath := ""
	if mirrorFile != nil {
		switch {
		case mirrorTee.err != nil:
			mirrorFile.Discard()
			logMirrorFailure("mirror_write_failed", filename, mirrorTee.err)
		default:
			p, err := mirrorFile.Commit()
			if err != nil {
				logMirrorFailure("mirror_commit_failed", filename, err)
			} else {
				mirrorPath = p
			}
		}
	}

	obj := &model.StoredObject{
		ID:          uuid.NewString(),
		Filename:    filename,
		StoragePath: info.Key,
		Size:        info.Size,
		ContentType: contentType,
		Metadata: model.ObjectMetadata{
			DocumentType: documentType,
			UploadDate:   now,
			MirrorPath:   mirrorPath,
		},
	}
	stored, err := s.repo.Create(ctx, obj)
	if err != nil {
		// Rollback: delete the finalized object so no orphan bytes outlive
		// a missing metadata row.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("metadata save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("metadata save failed: %w", err)
	}
	return stored, nil
}

// Get returns an object's metadata by filename.
func (s *objectService) Get(ctx context.Context, filename string) (*model.StoredObject, error) {
	if s.repo == nil {
		return nil, ErrNotReady
	}
	if filename == "" {
		return nil, ErrNotFound
	}
	obj, err := s.repo.FindByFilename(ctx, filename)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

// Open looks up the object and opens a single-pass read stream over its bytes.
func (s *objectService) Open(ctx context.Context, filename string) (io.ReadCloser, *model.StoredObject, error) {
	obj, err := s.Get(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.OpenRead(ctx, obj.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Metadata row without bytes; treat as a miss rather than leak
			// the inconsistency to the client.
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open store read: %w", err)
	}
	return rc, obj, nil
}

// ListAll returns metadata for every stored object.
func (s *objectService) ListAll(ctx context.Context) ([]model.StoredObject, error) {
	if s.repo == nil {
		return nil, ErrNotReady
	}
	return s.repo.ListAll(ctx)
}

// bestEffortWriter feeds the mirror sink from the upload tee without ever
// failing the primary write. The first error stops mirroring; the copy
// keeps running against the primary sink.
type bestEffortWriter struct {
	dst io.Writer
	err error
}

func (w *bestEffortWriter) Write(p []byte) (int, error) {
	if w.err == nil {
		if _, err := w.dst.Write(p); err != nil {
			w.err = err
		}
	}
	return len(p), nil
}

func logMirrorFailure(event, filename string, err error) {
	b, mErr := json.Marshal(map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     "warn",
		"component": "ingest",
		"event":     event,
		"filename":  filename,
		"error":     err.Error(),
	})
	if mErr != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
