package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"voicebook/internal/model"
	"voicebook/internal/service"
)

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) SaveAudio(ctx context.Context, up *service.Upload) (model.StoredFile, error) {
	args := m.Called(ctx, up)
	return args.Get(0).(model.StoredFile), args.Error(1)
}

func (m *MockUploadService) SaveDocument(ctx context.Context, up *service.Upload) (model.StoredFile, error) {
	args := m.Called(ctx, up)
	return args.Get(0).(model.StoredFile), args.Error(1)
}

func (m *MockUploadService) CurrentDocument(ctx context.Context) (model.StoredFile, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.StoredFile), args.Bool(1), args.Error(2)
}

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Run(ctx context.Context, up *service.Upload) service.Result {
	args := m.Called(ctx, up)
	return args.Get(0).(service.Result)
}

func (m *MockPipeline) Mode() string {
	args := m.Called()
	return args.String(0)
}
