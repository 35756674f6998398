// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/qaloop-dev/qaloop/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Device Mock --

// MockDevice mocks the schemas.Device interface so agent and orchestrator
// logic can be exercised without adb or a connected emulator.
type MockDevice struct {
	mock.Mock
}

var _ schemas.Device = (*MockDevice)(nil)

func (m *MockDevice) Tap(ctx context.Context, x, y int) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockDevice) TapByText(ctx context.Context, label string) error {
	return m.Called(ctx, label).Error(0)
}

func (m *MockDevice) LongPress(ctx context.Context, x, y int) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockDevice) TypeText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockDevice) Swipe(ctx context.Context, x1, y1, x2, y2 int) error {
	return m.Called(ctx, x1, y1, x2, y2).Error(0)
}

func (m *MockDevice) PressBack(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDevice) PressHome(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDevice) PressEnter(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDevice) CaptureScreen(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDevice) ScreenSize(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockDevice) UIHierarchy(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDevice) LaunchApp(ctx context.Context, pkg string) error {
	return m.Called(ctx, pkg).Error(0)
}

func (m *MockDevice) StopApp(ctx context.Context, pkg string) error {
	return m.Called(ctx, pkg).Error(0)
}

func (m *MockDevice) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	args := m.Called(ctx, pkg)
	return args.Bool(0), args.Error(1)
}

func (m *MockDevice) Info(ctx context.Context) (schemas.DeviceInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.DeviceInfo), args.Error(1)
}

func (m *MockDevice) StreamLogcat(ctx context.Context, w io.Writer) error {
	return m.Called(ctx, w).Error(0)
}
