package mocks

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/syncer"
	"github.com/stretchr/testify/mock"
)

// MockRemote is a testify mock of syncer.Remote.
type MockRemote[T domain.Syncable] struct {
	mock.Mock
}

// NewMockRemote creates a MockRemote whose expectations are asserted on cleanup.
func NewMockRemote[T domain.Syncable](t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRemote[T] {
	m := &MockRemote[T]{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRemote[T]) Create(ctx context.Context, item T) (T, error) {
	args := m.Called(ctx, item)
	return valueOrZero[T](args.Get(0)), args.Error(1)
}

func (m *MockRemote[T]) Update(ctx context.Context, item T) (T, error) {
	args := m.Called(ctx, item)
	return valueOrZero[T](args.Get(0)), args.Error(1)
}

func (m *MockRemote[T]) Delete(ctx context.Context, serverID string) error {
	return m.Called(ctx, serverID).Error(0)
}

func (m *MockRemote[T]) Changes(ctx context.Context, strategy syncer.Strategy) (*syncer.ChangeSet[T], error) {
	args := m.Called(ctx, strategy)
	cs, _ := args.Get(0).(*syncer.ChangeSet[T])
	return cs, args.Error(1)
}

func valueOrZero[T any](v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	return zero
}

var _ syncer.Remote[*domain.Payment] = (*MockRemote[*domain.Payment])(nil)
