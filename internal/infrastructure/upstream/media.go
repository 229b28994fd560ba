package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

// MediaConfig configures HTTPMediaSource.
type MediaConfig struct {
	// Timeout bounds the wait for response headers and every wait for the next body bytes.
	Timeout   time.Duration
	MaxBytes  int64
	ChunkSize int
	Headers   BrowserHeaders
}

// HTTPMediaSource opens media URLs over HTTP for chunked relaying.
type HTTPMediaSource struct {
	client *http.Client
	cfg    MediaConfig
}

// NewHTTPMediaSource creates a media source. The client has no overall
// timeout because a relay may legitimately run for a long time.
func NewHTTPMediaSource(cfg MediaConfig) *HTTPMediaSource {
	return &HTTPMediaSource{
		client: &http.Client{Transport: newTransport(cfg.Timeout)},
		cfg:    cfg,
	}
}

// Open issues the GET and waits for response headers.
func (s *HTTPMediaSource) Open(ctx context.Context, mediaURL string) (repository.MediaStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	wd := newWatchdog(s.cfg.Timeout, cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		wd.stop()
		cancel()
		return nil, fmt.Errorf("%w: build request: %v", model.ErrInvalidURL, err)
	}
	s.cfg.Headers.apply(req)

	start := time.Now()
	resp, err := s.client.Do(req)
	wd.stop()
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.TargetMedia).Observe(time.Since(start).Seconds())
	if err != nil {
		cancel()
		if wd.fired() || isTimeout(err) {
			err = fmt.Errorf("%w: media: %v", model.ErrUpstreamTimeout, err)
		} else {
			err = fmt.Errorf("%w: media: %v", model.ErrUpstream, err)
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.TargetMedia, model.KindOf(err)).Inc()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		err := fmt.Errorf("%w: media host returned HTTP %d", model.ErrUpstream, resp.StatusCode)
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.TargetMedia, model.KindOf(err)).Inc()
		return nil, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.TargetMedia, metrics.ResultOK).Inc()
	return &mediaStream{
		body:        resp.Body,
		cancel:      cancel,
		wd:          wd,
		contentType: resp.Header.Get("Content-Type"),
		buf:         make([]byte, s.cfg.ChunkSize),
		maxBytes:    s.cfg.MaxBytes,
	}, nil
}

// mediaStream hands out the body in chunks of at most len(buf) bytes.
type mediaStream struct {
	body        io.ReadCloser
	cancel      context.CancelFunc
	wd          *watchdog
	contentType string
	buf         []byte
	maxBytes    int64

	relayed   int64
	err       error
	closeOnce sync.Once
}

func (s *mediaStream) ContentType() string { return s.contentType }

func (s *mediaStream) Relayed() int64 { return s.relayed }

func (s *mediaStream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		s.wd.reset()
		n, err := s.body.Read(s.buf)
		s.wd.stop()
		if n > 0 {
			if s.relayed+int64(n) > s.maxBytes {
				s.err = fmt.Errorf("%w: %w after %d bytes", model.ErrStreamInterrupted, repository.ErrSizeLimitExceeded, s.relayed)
				s.Close()
				return nil, s.err
			}
			s.relayed += int64(n)
			if err != nil {
				s.err = s.terminal(err)
			}
			return s.buf[:n], nil
		}
		if err != nil {
			s.err = s.terminal(err)
			return nil, s.err
		}
	}
}

// terminal converts a read error into the error every later Next returns.
func (s *mediaStream) terminal(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if s.wd.fired() {
		return fmt.Errorf("%w: no data for %s", model.ErrStreamInterrupted, s.wd.d)
	}
	return fmt.Errorf("%w: %v", model.ErrStreamInterrupted, err)
}

func (s *mediaStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.wd.stop()
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// watchdog cancels the request when a wait started by reset lasts longer than d.
// A zero d disables it.
type watchdog struct {
	d       time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newWatchdog(d time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{d: d}
	if d <= 0 {
		return w
	}
	w.timer = time.AfterFunc(d, func() {
		w.expired.Store(true)
		cancel()
	})
	return w
}

func (w *watchdog) reset() {
	if w.timer != nil && !w.expired.Load() {
		w.timer.Reset(w.d)
	}
}

func (w *watchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watchdog) fired() bool { return w.expired.Load() }
