package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"idvault/internal/model"
	repoMocks "idvault/internal/repository/mocks"
	"idvault/internal/storage"
	storeMocks "idvault/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeWriteHandle collects written bytes in memory and records lifecycle
// calls, standing in for a streamed store write.
type fakeWriteHandle struct {
	bytes.Buffer
	closed   bool
	aborted  bool
	closeErr error
	key      string
}

func (h *fakeWriteHandle) Close() (storage.ObjectInfo, error) {
	h.closed = true
	if h.closeErr != nil {
		return storage.ObjectInfo{}, h.closeErr
	}
	return storage.ObjectInfo{Key: h.key, Size: int64(h.Len())}, nil
}

func (h *fakeWriteHandle) Abort() error {
	h.aborted = true
	return nil
}

// failingReader errors after the first read.
type failingReader struct {
	fed bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.fed {
		r.fed = true
		p[0] = 'x'
		return 1, nil
	}
	return 0, errors.New("connection dropped")
}

func TestObjectService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		h := &fakeWriteHandle{}
		mStore.On("OpenWrite", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "uploads/") && strings.HasSuffix(key, ".jpg")
		}), mock.MatchedBy(func(opt storage.WriteOptions) bool {
			return opt.ContentType == "image/jpeg" && opt.Metadata["document-type"] == "nid"
		})).Return(h, nil).Run(func(args mock.Arguments) {
			h.key = args.String(1)
		})

		mRepo.On("Create", ctx, mock.MatchedBy(func(obj *model.StoredObject) bool {
			return strings.HasSuffix(obj.Filename, ".jpg") &&
				obj.StoragePath == "uploads/"+obj.Filename &&
				obj.Size == 3 &&
				obj.Metadata.DocumentType == "nid" &&
				!obj.Metadata.UploadDate.IsZero()
		})).Return(&model.StoredObject{ID: "gen-id"}, nil)

		payload := []byte{0xFF, 0xD8, 0xFF}
		obj, err := svc.Ingest(ctx, bytes.NewReader(payload), "front.jpg", "image/jpeg", "nid")

		require.NoError(t, err)
		assert.Equal(t, "gen-id", obj.ID)
		assert.True(t, h.closed)
		assert.False(t, h.aborted)
		assert.Equal(t, payload, h.Bytes())

		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("not ready", func(t *testing.T) {
		svc := NewObjectService(nil, nil, nil)
		_, err := svc.Ingest(ctx, strings.NewReader("x"), "a.jpg", "image/jpeg", "nid")
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("nil reader", func(t *testing.T) {
		svc := NewObjectService(new(storeMocks.MockBlobStore), new(repoMocks.MockObjectRepository), nil)
		_, err := svc.Ingest(ctx, nil, "a.jpg", "image/jpeg", "nid")
		assert.ErrorIs(t, err, ErrReaderNil)
	})

	t.Run("open write error", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).
			Return(nil, errors.New("store down"))

		_, err := svc.Ingest(ctx, strings.NewReader("x"), "a.jpg", "image/jpeg", "nid")
		assert.ErrorContains(t, err, "open store write: store down")
		mStore.AssertExpectations(t)
	})

	t.Run("stream error aborts write", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		h := &fakeWriteHandle{}
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).Return(h, nil)

		_, err := svc.Ingest(ctx, &failingReader{}, "a.jpg", "image/jpeg", "nid")
		assert.ErrorContains(t, err, "write object stream")
		assert.True(t, h.aborted)
		assert.False(t, h.closed)
		mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("finalize error", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		h := &fakeWriteHandle{closeErr: errors.New("disk full")}
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).Return(h, nil)

		_, err := svc.Ingest(ctx, strings.NewReader("x"), "a.jpg", "image/jpeg", "nid")
		assert.ErrorContains(t, err, "finalize object: disk full")
		mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("metadata save error with successful rollback", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		h := &fakeWriteHandle{}
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).Return(h, nil)
		mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
		mStore.On("Delete", ctx, mock.Anything).Return(nil)

		_, err := svc.Ingest(ctx, strings.NewReader("x"), "a.jpg", "image/jpeg", "nid")
		assert.ErrorContains(t, err, "metadata save failed: db fail")
		mStore.AssertCalled(t, "Delete", ctx, mock.Anything)
	})

	t.Run("metadata save error with failed rollback", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		h := &fakeWriteHandle{}
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).Return(h, nil)
		mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
		mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))

		_, err := svc.Ingest(ctx, strings.NewReader("x"), "a.jpg", "image/jpeg", "nid")
		assert.ErrorContains(t, err, "rollback delete failed: delete fail")
	})

	t.Run("rapid ingests produce distinct filenames", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).
			Return(&fakeWriteHandle{}, nil).Once()
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).
			Return(&fakeWriteHandle{}, nil).Once()

		var filenames []string
		mRepo.On("Create", ctx, mock.MatchedBy(func(obj *model.StoredObject) bool {
			filenames = append(filenames, obj.Filename)
			return true
		})).Return(&model.StoredObject{}, nil).Twice()

		_, err := svc.Ingest(ctx, strings.NewReader("a"), "a.jpg", "image/jpeg", "nid")
		require.NoError(t, err)
		_, err = svc.Ingest(ctx, strings.NewReader("b"), "b.jpg", "image/jpeg", "nid")
		require.NoError(t, err)

		require.Len(t, filenames, 2)
		assert.NotEqual(t, filenames[0], filenames[1])
	})
}

func TestObjectService_IngestMirror(t *testing.T) {
	ctx := context.Background()
	payload := []byte("identity document bytes")

	newMocks := func(t *testing.T) (*storeMocks.MockBlobStore, *repoMocks.MockObjectRepository) {
		t.Helper()
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).Return(&fakeWriteHandle{}, nil)
		mRepo.On("Create", ctx, mock.Anything).Return(&model.StoredObject{ID: "gen-id"}, nil)
		return mStore, mRepo
	}

	t.Run("mirror receives identical bytes", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := storage.NewMirrorSink(dir)
		require.NoError(t, err)

		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		mStore.On("OpenWrite", ctx, mock.Anything, mock.Anything).Return(&fakeWriteHandle{}, nil)

		var created *model.StoredObject
		mRepo.On("Create", ctx, mock.MatchedBy(func(obj *model.StoredObject) bool {
			created = obj
			return true
		})).Return(&model.StoredObject{ID: "gen-id"}, nil)

		svc := NewObjectService(mStore, mRepo, sink)
		_, err = svc.Ingest(ctx, bytes.NewReader(payload), "front.jpg", "image/jpeg", "nid")
		require.NoError(t, err)

		require.NotNil(t, created)
		require.NotEmpty(t, created.Metadata.MirrorPath)
		assert.Equal(t, filepath.Join(dir, created.Filename), created.Metadata.MirrorPath)

		got, err := os.ReadFile(created.Metadata.MirrorPath)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("mirror open failure does not fail ingest", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := storage.NewMirrorSink(dir)
		require.NoError(t, err)
		// Pull the directory out from under the sink so Create fails.
		require.NoError(t, os.RemoveAll(dir))

		mStore, mRepo := newMocks(t)
		svc := NewObjectService(mStore, mRepo, sink)

		obj, err := svc.Ingest(ctx, bytes.NewReader(payload), "front.jpg", "image/jpeg", "nid")
		require.NoError(t, err)
		assert.Equal(t, "gen-id", obj.ID)
	})
}

func TestObjectService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		filename   string
		setupMocks func(mRepo *repoMocks.MockObjectRepository)
		wantErr    error
	}{
		{
			name:     "happy path",
			filename: "1700000000000-abcd1234.jpg",
			setupMocks: func(mRepo *repoMocks.MockObjectRepository) {
				mRepo.On("FindByFilename", ctx, "1700000000000-abcd1234.jpg").
					Return(&model.StoredObject{Filename: "1700000000000-abcd1234.jpg"}, nil)
			},
		},
		{
			name:       "empty filename",
			filename:   "",
			setupMocks: func(mRepo *repoMocks.MockObjectRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name:     "not found - mapping sql.ErrNoRows",
			filename: "missing.jpg",
			setupMocks: func(mRepo *repoMocks.MockObjectRepository) {
				mRepo.On("FindByFilename", ctx, "missing.jpg").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:     "generic repository error",
			filename: "error.jpg",
			setupMocks: func(mRepo *repoMocks.MockObjectRepository) {
				mRepo.On("FindByFilename", ctx, "error.jpg").Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockObjectRepository)
			svc := NewObjectService(new(storeMocks.MockBlobStore), mRepo, nil)

			tt.setupMocks(mRepo)

			obj, err := svc.Get(ctx, tt.filename)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, obj)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.filename, obj.Filename)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestObjectService_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		payload := []byte{0xFF, 0xD8, 0xFF}
		mRepo.On("FindByFilename", ctx, "a.jpg").
			Return(&model.StoredObject{Filename: "a.jpg", StoragePath: "uploads/a.jpg", Size: 3}, nil)
		mStore.On("OpenRead", ctx, "uploads/a.jpg").
			Return(io.NopCloser(bytes.NewReader(payload)), storage.ObjectInfo{Size: 3}, nil)

		rc, obj, err := svc.Open(ctx, "a.jpg")
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.Equal(t, int64(3), obj.Size)
	})

	t.Run("metadata row without bytes maps to not found", func(t *testing.T) {
		mStore := new(storeMocks.MockBlobStore)
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(mStore, mRepo, nil)

		mRepo.On("FindByFilename", ctx, "a.jpg").
			Return(&model.StoredObject{Filename: "a.jpg", StoragePath: "uploads/a.jpg"}, nil)
		mStore.On("OpenRead", ctx, "uploads/a.jpg").
			Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)

		_, _, err := svc.Open(ctx, "a.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lookup miss", func(t *testing.T) {
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(new(storeMocks.MockBlobStore), mRepo, nil)

		mRepo.On("FindByFilename", ctx, "missing.jpg").Return(nil, sql.ErrNoRows)

		_, _, err := svc.Open(ctx, "missing.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestObjectService_ListAll(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(new(storeMocks.MockBlobStore), mRepo, nil)

		mRepo.On("ListAll", ctx).Return([]model.StoredObject{
			{Filename: "b.jpg"}, {Filename: "a.jpg"},
		}, nil)

		objs, err := svc.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, objs, 2)
	})

	t.Run("repository error", func(t *testing.T) {
		mRepo := new(repoMocks.MockObjectRepository)
		svc := NewObjectService(new(storeMocks.MockBlobStore), mRepo, nil)

		mRepo.On("ListAll", ctx).Return(nil, errors.New("db fail"))

		_, err := svc.ListAll(ctx)
		assert.Error(t, err)
	})
}

func TestBestEffortWriter(t *testing.T) {
	t.Run("passes bytes through", func(t *testing.T) {
		var buf bytes.Buffer
		w := &bestEffortWriter{dst: &buf}

		n, err := w.Write([]byte("abc"))
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "abc", buf.String())
	})

	t.Run("swallows sink errors and stops mirroring", func(t *testing.T) {
		w := &bestEffortWriter{dst: &failingWriter{}}

		n, err := w.Write([]byte("abc"))
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Error(t, w.err)

		// Later writes still succeed from the tee's point of view.
		n, err = w.Write([]byte("def"))
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

type failingWriter struct{}

func (*failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("mirror disk full")
}
