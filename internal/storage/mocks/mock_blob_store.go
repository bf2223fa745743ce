package mocks

import (
	"context"
	"io"

	"idvault/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) OpenWrite(ctx context.Context, key string, opt storage.WriteOptions) (storage.WriteHandle, error) {
	args := m.Called(ctx, key, opt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(storage.WriteHandle), args.Error(1)
}

func (m *MockBlobStore) OpenRead(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockBlobStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockWriteHandle struct {
	mock.Mock
}

func (m *MockWriteHandle) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockWriteHandle) Close() (storage.ObjectInfo, error) {
	args := m.Called()
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockWriteHandle) Abort() error {
	args := m.Called()
	return args.Error(0)
}
