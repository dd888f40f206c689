package mocks

import (
	"context"
	"io"

	"voicebook/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(ctx context.Context, folder, name string, r io.Reader) (model.StoredFile, error) {
	args := m.Called(ctx, folder, name, r)
	return args.Get(0).(model.StoredFile), args.Error(1)
}

func (m *MockStorage) Open(ctx context.Context, folder, name string) (io.ReadCloser, model.StoredFile, error) {
	args := m.Called(ctx, folder, name)
	if args.Get(0) == nil {
		return nil, args.Get(1).(model.StoredFile), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(model.StoredFile), args.Error(2)
}

func (m *MockStorage) List(ctx context.Context, folder string, exts ...string) ([]model.StoredFile, error) {
	args := m.Called(ctx, folder, exts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredFile), args.Error(1)
}

func (m *MockStorage) LocalPath(ctx context.Context, folder, name string) (string, func(), error) {
	args := m.Called(ctx, folder, name)
	return args.String(0), func() {}, args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
