package usecase

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
)

// mockResolver provides a configurable mock for repository.Resolver.
type mockResolver struct {
	resolveFn    func(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error)
	resolveCount atomic.Int32
}

func (m *mockResolver) Resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	m.resolveCount.Add(1)
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sourceURL)
	}
	return nil, nil
}

// mockResolutionCache is an in-memory ResolutionCache with overridable behavior.
type mockResolutionCache struct {
	mu    sync.RWMutex
	data  map[string]*model.ResolvedVideo
	getFn func(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error)
	setFn func(ctx context.Context, sourceURL string, video *model.ResolvedVideo) error
}

func newMockResolutionCache() *mockResolutionCache {
	return &mockResolutionCache{
		data: make(map[string]*model.ResolvedVideo),
	}
}

func (m *mockResolutionCache) Get(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, sourceURL)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[sourceURL], nil
}

func (m *mockResolutionCache) Set(ctx context.Context, sourceURL string, video *model.ResolvedVideo) error {
	if m.setFn != nil {
		return m.setFn(ctx, sourceURL, video)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sourceURL] = video
	return nil
}

// mockMetadataResolver provides a configurable mock for MetadataResolver.
type mockMetadataResolver struct {
	resolveFn func(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error)
}

func (m *mockMetadataResolver) Resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sourceURL)
	}
	return nil, nil
}

// memoryVideoStore is a map-backed VideoStore enforcing unique filenames.
type memoryVideoStore struct {
	mu      sync.Mutex
	records map[string]*model.StoredVideo

	findFn   func(ctx context.Context, filename string) (*model.StoredVideo, error)
	insertFn func(ctx context.Context, video *model.StoredVideo) (bool, error)
	countFn  func(ctx context.Context) (int64, error)
	sizeFn   func(ctx context.Context) (int64, error)
	listFn   func(ctx context.Context, limit int) ([]model.VideoSummary, error)
	pingFn   func(ctx context.Context) error

	insertCount atomic.Int32
}

func newMemoryVideoStore() *memoryVideoStore {
	return &memoryVideoStore{
		records: make(map[string]*model.StoredVideo),
	}
}

func (m *memoryVideoStore) FindByFilename(ctx context.Context, filename string) (*model.StoredVideo, error) {
	if m.findFn != nil {
		return m.findFn(ctx, filename)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.records[filename]
	if !ok {
		return nil, repository.ErrVideoNotFound
	}
	return v, nil
}

func (m *memoryVideoStore) InsertIfAbsent(ctx context.Context, video *model.StoredVideo) (bool, error) {
	m.insertCount.Add(1)
	if m.insertFn != nil {
		return m.insertFn(ctx, video)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[video.Filename]; ok {
		return false, nil
	}
	m.records[video.Filename] = video
	return true, nil
}

func (m *memoryVideoStore) Count(ctx context.Context) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memoryVideoStore) TotalPayloadSize(ctx context.Context) (int64, error) {
	if m.sizeFn != nil {
		return m.sizeFn(ctx)
	}
	return 0, nil
}

func (m *memoryVideoStore) List(ctx context.Context, limit int) ([]model.VideoSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

func (m *memoryVideoStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *memoryVideoStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockEventPublisher records published events.
type mockEventPublisher struct {
	mu        sync.Mutex
	events    []repository.VideoResolvedEvent
	publishFn func(ctx context.Context, event repository.VideoResolvedEvent) error
}

func (m *mockEventPublisher) PublishVideoResolved(ctx context.Context, event repository.VideoResolvedEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, event)
	}
	return nil
}

func (m *mockEventPublisher) published() []repository.VideoResolvedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.VideoResolvedEvent(nil), m.events...)
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	uploadFn func(ctx context.Context, key string, reader io.Reader, contentType string) error
	existsFn func(ctx context.Context, key string) (bool, error)
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

// mockMediaSource opens a fakeStream or fails with openErr.
type mockMediaSource struct {
	openFn    func(ctx context.Context, mediaURL string) (repository.MediaStream, error)
	openCount atomic.Int32
}

func (m *mockMediaSource) Open(ctx context.Context, mediaURL string) (repository.MediaStream, error) {
	m.openCount.Add(1)
	if m.openFn != nil {
		return m.openFn(ctx, mediaURL)
	}
	return &fakeStream{}, nil
}

// fakeStream hands out chunks in order and then terminates with err (io.EOF if nil).
type fakeStream struct {
	contentType string
	chunks      [][]byte
	err         error

	relayed int64
	closed  atomic.Bool
}

func (s *fakeStream) ContentType() string { return s.contentType }

func (s *fakeStream) Next() ([]byte, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	s.relayed += int64(len(chunk))
	return chunk, nil
}

func (s *fakeStream) Relayed() int64 { return s.relayed }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

func sampleResolved(name, downloadURL, thumbnail string) *model.ResolvedVideo {
	return &model.ResolvedVideo{
		Variants: []model.VideoVariant{{Name: name, Video: downloadURL, Thumbnail: thumbnail}},
		Raw:      []byte(`{"video":[{"name":"` + name + `","video":"` + downloadURL + `","thumbnail":"` + thumbnail + `"}]}`),
	}
}
