package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"voicebook/internal/model"
)

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, in model.SynthesisInput) ([]byte, error) {
	args := m.Called(ctx, in)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}
