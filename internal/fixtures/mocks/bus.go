package mocks

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/stretchr/testify/mock"
)

// MockBus is a testify mock of eventbus.Bus.
type MockBus struct {
	mock.Mock
}

// NewMockBus creates a MockBus whose expectations are asserted on cleanup.
func NewMockBus(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockBus {
	m := &MockBus{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBus) Emit(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockBus) Register(eventType string, handler eventbus.HandlerFunc) {
	m.Called(eventType, handler)
}

var _ eventbus.Bus = (*MockBus)(nil)
