package remote

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStorage — мок для юнит-тестов сервисов
type MockStorage struct {
	mock.Mock
}

func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, onProgress ProgressFunc) error {
	args := m.Called(ctx, key, r, size, onProgress)
	return args.Error(0)
}

func (m *MockStorage) Download(ctx context.Context, key string, w io.Writer, onProgress ProgressFunc) error {
	args := m.Called(ctx, key, w, onProgress)
	return args.Error(0)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ObjectInfo), args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ObjectInfo), args.Error(1)
}
