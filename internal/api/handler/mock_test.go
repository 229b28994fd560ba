package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/usecase"
)

// mockVideoService is a mock implementation of usecase.VideoService for testing.
type mockVideoService struct {
	resolveFn func(ctx context.Context, sourceURL string) (*usecase.ResolveOutput, error)
	statsFn   func(ctx context.Context, limit int) (*model.StoreStats, error)
	healthFn  func(ctx context.Context) error
}

func (m *mockVideoService) Resolve(ctx context.Context, sourceURL string) (*usecase.ResolveOutput, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sourceURL)
	}
	return nil, nil
}

func (m *mockVideoService) Stats(ctx context.Context, limit int) (*model.StoreStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, limit)
	}
	return &model.StoreStats{}, nil
}

func (m *mockVideoService) Health(ctx context.Context) error {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil
}

// mockStreamService is a mock implementation of usecase.StreamService for testing.
type mockStreamService struct {
	relayFn func(ctx context.Context, mediaURL string, sink usecase.StreamSink) error
}

func (m *mockStreamService) Relay(ctx context.Context, mediaURL string, sink usecase.StreamSink) error {
	if m.relayFn != nil {
		return m.relayFn(ctx, mediaURL, sink)
	}
	return nil
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return out
}
