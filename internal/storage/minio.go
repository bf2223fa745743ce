package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"idvault/internal/config"
)

// minioStore implements BlobStore on an S3-compatible backend (MinIO, AWS S3, etc.).
// It is safe for concurrent use by multiple goroutines.
type minioStore struct {
	client *minio.Client
	bucket string
}

var errWriteAborted = errors.New("write aborted")

// NewMinIO creates a new S3-compatible blob store backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (BlobStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms := &minioStore{client: cli, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return ms, nil
}

// OpenWrite starts a streamed upload. Chunks written to the handle are
// pumped through an in-process pipe into a single PutObject call with
// unknown size, so the backend chunks as it sees fit and no full object is
// ever buffered. The object only becomes visible once Close succeeds.
func (m *minioStore) OpenWrite(ctx context.Context, key string, opt WriteOptions) (WriteHandle, error) {
	if key == "" {
		return nil, fmt.Errorf("object key is required")
	}

	pr, pw := io.Pipe()
	h := &minioWriteHandle{
		key:  key,
		opt:  opt,
		pw:   pw,
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		info, err := m.client.PutObject(ctx, m.bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType:  opt.ContentType,
			UserMetadata: opt.Metadata,
		})
		if err != nil {
			// Unblock a writer still pushing chunks into the pipe.
			pr.CloseWithError(err)
			h.putErr = err
			return
		}
		h.info = info
	}()

	return h, nil
}

// minioWriteHandle streams one object's bytes into a pending PutObject.
type minioWriteHandle struct {
	key  string
	opt  WriteOptions
	pw   *io.PipeWriter
	done chan struct{}

	// Set by the upload goroutine before done is closed.
	info   minio.UploadInfo
	putErr error

	mu     sync.Mutex
	closed bool
}

func (h *minioWriteHandle) Write(p []byte) (int, error) {
	return h.pw.Write(p)
}

// Close flushes the pipe, waits for the upload to finish, and returns the
// materialized object info. The size is only trustworthy here, after the
// backend acknowledged the full stream.
func (h *minioWriteHandle) Close() (ObjectInfo, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ObjectInfo{}, fmt.Errorf("write handle already closed")
	}
	h.closed = true
	h.mu.Unlock()

	_ = h.pw.Close()
	<-h.done

	if h.putErr != nil {
		return ObjectInfo{}, fmt.Errorf("finalize object %q: %w", h.key, h.putErr)
	}
	return ObjectInfo{
		Key:          h.key,
		Size:         h.info.Size,
		ETag:         h.info.ETag,
		ContentType:  h.opt.ContentType,
		LastModified: time.Now(),
		Metadata:     h.opt.Metadata,
	}, nil
}

// Abort cancels the upload. The backend never completes the object, so
// nothing partial becomes visible to readers.
func (h *minioWriteHandle) Abort() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	_ = h.pw.CloseWithError(errWriteAborted)
	<-h.done
	return nil
}

// OpenRead opens the object's content as a streaming reader along with its
// info. The stat runs first so a missing key is reported before any byte
// is streamed.
func (m *minioStore) OpenRead(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := m.Stat(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open object %q: %w", key, err)
	}
	return obj, info, nil
}

// Stat fetches object info without reading content.
func (m *minioStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	st, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ObjectInfo{}, fmt.Errorf("object %q: %w", key, ErrObjectNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("stat object %q: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     st.UserMetadata,
	}, nil
}

// Delete removes an object by key.
func (m *minioStore) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
