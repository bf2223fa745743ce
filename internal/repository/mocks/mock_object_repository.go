package mocks

import (
	"context"

	"idvault/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockObjectRepository struct {
	mock.Mock
}

func (m *MockObjectRepository) Create(ctx context.Context, obj *model.StoredObject) (*model.StoredObject, error) {
	args := m.Called(ctx, obj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredObject), args.Error(1)
}

func (m *MockObjectRepository) FindByFilename(ctx context.Context, filename string) (*model.StoredObject, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredObject), args.Error(1)
}

func (m *MockObjectRepository) ListAll(ctx context.Context) ([]model.StoredObject, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredObject), args.Error(1)
}
