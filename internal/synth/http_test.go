package synth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/audio"
)

func newTestHTTP(t *testing.T, h http.HandlerFunc) *HTTPSynthesizer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := NewHTTPSynthesizer(HTTPOptions{
		Endpoint:          srv.URL + "/stream_audio",
		Rate:              "+15%",
		Format:            audio.DefaultFormat(),
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
		Logger:            log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewHTTPSynthesizer() error = %v", err)
	}
	return s
}

func TestHTTPSynthesizerPCM(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	s := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream_audio" {
			t.Errorf("path = %q, want /stream_audio", r.URL.Path)
		}
		if got := r.URL.Query().Get("text"); got != "Hello, world & more." {
			t.Errorf("text = %q", got)
		}
		if got := r.URL.Query().Get("rate"); got != "+15%" {
			t.Errorf("rate = %q, want +15%%", got)
		}
		w.Header().Set("Content-Type", "audio/L16; rate=44100; channels=1")
		_, _ = w.Write(pcm)
	})

	got, err := s.Synthesize(context.Background(), "Hello, world & more.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("Synthesize() = %v, want %v", got, pcm)
	}
}

func TestHTTPSynthesizerPrefetchLeavesAToken(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{1, 0})
	}))
	t.Cleanup(srv.Close)

	// One request a minute: only the initial burst is available.
	s, err := NewHTTPSynthesizer(HTTPOptions{
		Endpoint:          srv.URL + "/stream_audio",
		RequestsPerMinute: 1,
		Logger:            log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewHTTPSynthesizer() error = %v", err)
	}

	prefetch := WithPrefetch(context.Background())
	for i := 0; i < limiterBurst-reservedTokens; i++ {
		if _, err := s.Synthesize(prefetch, "Ahead of time."); err != nil {
			t.Fatalf("prefetch #%d error = %v", i+1, err)
		}
	}

	ctx, cancel := context.WithTimeout(prefetch, 50*time.Millisecond)
	defer cancel()
	if _, err := s.Synthesize(ctx, "One too many."); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("prefetch past the reserve error = %v, want deadline exceeded", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := s.Synthesize(ctx, "Needed now."); err != nil {
		t.Fatalf("on-demand Synthesize() error = %v", err)
	}
	if got := requests.Load(); got != limiterBurst {
		t.Errorf("requests = %d, want %d", got, limiterBurst)
	}
}

func TestIsPrefetch(t *testing.T) {
	if IsPrefetch(context.Background()) {
		t.Error("plain context reported as prefetch")
	}
	ctx, cancel := context.WithCancel(WithPrefetch(context.Background()))
	defer cancel()
	if !IsPrefetch(context.WithoutCancel(ctx)) {
		t.Error("prefetch mark lost through derived contexts")
	}
}

func TestHTTPSynthesizerErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
		wantIs  error
	}{
		{
			name: "json error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error": "Text too long. Maximum 5000 characters."}`)
			},
			want: "http: synthesize: status 400: Text too long. Maximum 5000 characters.",
		},
		{
			name: "plain error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: "http: synthesize: status 500: Internal Server Error",
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
			},
			wantIs: ErrNoAudio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestHTTP(t, tt.handler)
			_, err := s.Synthesize(context.Background(), "hello")
			if err == nil {
				t.Fatal("Synthesize() expected error")
			}
			var serr *Error
			if !errors.As(err, &serr) {
				t.Fatalf("Synthesize() error %T is not *Error", err)
			}
			if tt.want != "" && err.Error() != tt.want {
				t.Errorf("Synthesize() error = %q, want %q", err, tt.want)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Synthesize() error = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestHTTPSynthesizerCancel(t *testing.T) {
	release := make(chan struct{})
	s := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Synthesize(ctx, "hello")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Synthesize() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Synthesize() did not return after cancel")
	}
}

func TestHTTPSynthesizerHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	s := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status": "healthy"}`)
	})

	if err := s.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	healthy.Store(false)
	if err := s.Health(context.Background()); err == nil {
		t.Error("Health() expected error from unhealthy server")
	}
}

func TestNewHTTPSynthesizerInvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "localhost:5050", "://bad"} {
		if _, err := NewHTTPSynthesizer(HTTPOptions{Endpoint: endpoint}); err == nil {
			t.Errorf("NewHTTPSynthesizer(%q) expected error", endpoint)
		}
	}
}
