package mock

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// MockProvider satisfies models.AssetProvider for testing. Calls are counted
// so tests can assert how far a pipeline got.
type MockProvider struct {
	Name_        string
	Model_       string
	UploadFunc   func(ctx context.Context, path, mimeType string) (models.Asset, error)
	StatusFunc   func(ctx context.Context, asset models.Asset) (models.AssetState, error)
	GenerateFunc func(ctx context.Context, asset models.Asset, prompt string) (string, error)

	UploadCalls   atomic.Int32
	StatusCalls   atomic.Int32
	GenerateCalls atomic.Int32
}

func (m *MockProvider) Name() string  { return m.Name_ }
func (m *MockProvider) Model() string { return m.Model_ }

func (m *MockProvider) Upload(ctx context.Context, path, mimeType string) (models.Asset, error) {
	m.UploadCalls.Add(1)
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, path, mimeType)
	}
	return models.Asset{}, nil
}

func (m *MockProvider) Status(ctx context.Context, asset models.Asset) (models.AssetState, error) {
	m.StatusCalls.Add(1)
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, asset)
	}
	return models.AssetActive, nil
}

func (m *MockProvider) Generate(ctx context.Context, asset models.Asset, prompt string) (string, error) {
	m.GenerateCalls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, asset, prompt)
	}
	return "", nil
}

func uploaded(state models.AssetState) func(context.Context, string, string) (models.Asset, error) {
	return func(_ context.Context, path, mimeType string) (models.Asset, error) {
		return models.Asset{
			Name:     "files/" + filepath.Base(path),
			URI:      "mock://files/" + filepath.Base(path),
			MIMEType: mimeType,
			State:    state,
		}, nil
	}
}

// NewMockProvider returns a MockProvider whose uploads go straight to ACTIVE
// and whose generation returns text.
func NewMockProvider(text string) *MockProvider {
	return &MockProvider{
		Name_:      "mock",
		Model_:     "mock-v1",
		UploadFunc: uploaded(models.AssetProcessing),
		StatusFunc: func(_ context.Context, _ models.Asset) (models.AssetState, error) {
			return models.AssetActive, nil
		},
		GenerateFunc: func(_ context.Context, _ models.Asset, _ string) (string, error) {
			return text, nil
		},
	}
}

// NewFailingProvider returns a MockProvider whose uploads always fail with err.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:  "mock-failing",
		Model_: "mock-v1",
		UploadFunc: func(_ context.Context, _, _ string) (models.Asset, error) {
			return models.Asset{}, err
		},
	}
}

// NewStuckProvider returns a MockProvider whose assets never leave
// PROCESSING, but which still answers generation requests with text.
func NewStuckProvider(text string) *MockProvider {
	return &MockProvider{
		Name_:      "mock-stuck",
		Model_:     "mock-v1",
		UploadFunc: uploaded(models.AssetProcessing),
		StatusFunc: func(_ context.Context, _ models.Asset) (models.AssetState, error) {
			return models.AssetProcessing, nil
		},
		GenerateFunc: func(_ context.Context, _ models.Asset, _ string) (string, error) {
			return text, nil
		},
	}
}

// NewBlockingProvider returns a MockProvider whose generation blocks until the
// context is done.
func NewBlockingProvider() *MockProvider {
	return &MockProvider{
		Name_:      "mock-blocking",
		Model_:     "mock-v1",
		UploadFunc: uploaded(models.AssetActive),
		GenerateFunc: func(ctx context.Context, _ models.Asset, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// Compile-time check that MockProvider implements AssetProvider.
var _ models.AssetProvider = (*MockProvider)(nil)
