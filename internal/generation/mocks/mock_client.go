package mocks

import (
	"context"

	"voicebook/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) UploadArtifact(ctx context.Context, path string) (model.RemoteFile, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(model.RemoteFile), args.Error(1)
}

func (m *MockClient) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
