package mocks

import (
	"context"
	"io"

	"idvault/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockObjectService struct {
	mock.Mock
}

func (m *MockObjectService) Ingest(ctx context.Context, r io.Reader, originalFilename, contentType, documentType string) (*model.StoredObject, error) {
	args := m.Called(ctx, r, originalFilename, contentType, documentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredObject), args.Error(1)
}

func (m *MockObjectService) Get(ctx context.Context, filename string) (*model.StoredObject, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredObject), args.Error(1)
}

func (m *MockObjectService) Open(ctx context.Context, filename string) (io.ReadCloser, *model.StoredObject, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.StoredObject), args.Error(2)
}

func (m *MockObjectService) ListAll(ctx context.Context) ([]model.StoredObject, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredObject), args.Error(1)
}
