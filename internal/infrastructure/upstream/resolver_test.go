package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

const resolverBody = `{"video":[{"name":"clip1.mp4","video":"https://cdn/clip1.mp4","thumbnail":"https://cdn/t.jpg"}]}`

func newTestResolver(t *testing.T, baseURL string, timeout time.Duration) *HTTPResolver {
	t.Helper()

	r, err := NewHTTPResolver(ResolverConfig{
		BaseURL: baseURL,
		Timeout: timeout,
		Headers: BrowserHeaders{UserAgent: "test-agent/1.0", AcceptLanguage: "en-US,en;q=0.9"},
	})
	if err != nil {
		t.Fatalf("NewHTTPResolver failed: %v", err)
	}
	return r
}

func TestHTTPResolver_Resolve_Success(t *testing.T) {
	received := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resolverBody))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL+"/", 5*time.Second)

	source := "https://example.com/v.mp4?a=1&b=2"
	video, err := r.Resolve(context.Background(), source)
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}

	req := <-received
	if got := req.URL.Query().Get("url"); got != source {
		t.Errorf("upstream url param = %q, want %q", got, source)
	}
	if got := req.Header.Get("User-Agent"); got != "test-agent/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := req.Header.Get("Accept-Language"); got != "en-US,en;q=0.9" {
		t.Errorf("Accept-Language = %q", got)
	}
	if video.Filename() != "clip1.mp4" {
		t.Errorf("Filename() = %q, want clip1.mp4", video.Filename())
	}
	if video.Primary().Video != "https://cdn/clip1.mp4" {
		t.Errorf("Video = %q", video.Primary().Video)
	}
	if string(video.Raw) != resolverBody {
		t.Errorf("Raw = %s", video.Raw)
	}
}

func TestHTTPResolver_Resolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, "nope", model.ErrUpstream},
		{"server error", http.StatusBadGateway, resolverBody, model.ErrUpstream},
		{"not json", http.StatusOK, "<html>", model.ErrMalformedUpstreamResponse},
		{"missing video list", http.StatusOK, `{"status":"ok"}`, model.ErrMalformedUpstreamResponse},
		{"empty video list", http.StatusOK, `{"video":[]}`, model.ErrMalformedUpstreamResponse},
		{"variant without name", http.StatusOK, `{"video":[{"video":"https://cdn/x.mp4"}]}`, model.ErrMalformedUpstreamResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := newTestResolver(t, srv.URL, 5*time.Second)

			_, err := r.Resolve(context.Background(), "https://example.com/v.mp4")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("upstream calls = %d, want exactly 1", n)
			}
		})
	}
}

func TestHTTPResolver_Resolve_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := newTestResolver(t, srv.URL, 50*time.Millisecond)

	_, err := r.Resolve(context.Background(), "https://example.com/v.mp4")
	if !errors.Is(err, model.ErrUpstreamTimeout) {
		t.Errorf("Resolve() error = %v, want ErrUpstreamTimeout", err)
	}
}

func TestHTTPResolver_Resolve_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	r := newTestResolver(t, addr, time.Second)

	_, err := r.Resolve(context.Background(), "https://example.com/v.mp4")
	if !errors.Is(err, model.ErrUpstream) {
		t.Errorf("Resolve() error = %v, want ErrUpstream", err)
	}
}

func TestNewHTTPResolver_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "tera.instavideosave.com", "://bad"} {
		if _, err := NewHTTPResolver(ResolverConfig{BaseURL: base, Timeout: time.Second}); err == nil {
			t.Errorf("NewHTTPResolver(%q) expected error", base)
		}
	}
}

func TestHTTPResolver_buildURL(t *testing.T) {
	r := newTestResolver(t, "https://resolver.example/?lang=en", time.Second)

	got := r.buildURL("https://example.com/s/1?pwd=a b")
	want := "https://resolver.example/?lang=en&url=https%3A%2F%2Fexample.com%2Fs%2F1%3Fpwd%3Da+b"
	if got != want {
		t.Errorf("buildURL() = %q, want %q", got, want)
	}
}
