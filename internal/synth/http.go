package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/audio"
	"golang.org/x/time/rate"
)

const (
	// maxResponseSize caps a single audio response.
	maxResponseSize = 50 * 1024 * 1024

	// limiterBurst is how many requests may go out back to back.
	limiterBurst = 4

	// reservedTokens are kept free of prefetch requests.
	reservedTokens = 1
)

// HTTPOptions configures an HTTPSynthesizer.
type HTTPOptions struct {
	// Endpoint is the full URL of the stream endpoint, e.g.
	// http://localhost:5050/stream_audio.
	Endpoint string

	// Rate is passed through as the rate query parameter, e.g. "+15%".
	Rate string

	Format            audio.Format
	Timeout           time.Duration
	RequestsPerMinute int
	Decoder           Decoder
	Client            *http.Client
	Logger            *log.Logger
}

// HTTPSynthesizer calls GET {endpoint}?text=&rate= and decodes the reply.
// MP3 replies go through ffmpeg; raw PCM replies are used as they are.
type HTTPSynthesizer struct {
	endpoint *url.URL
	rate     string
	format   audio.Format
	client   *http.Client
	limiter  *rate.Limiter
	every    time.Duration
	decoder  Decoder
	log      *log.Logger

	// admit serializes prefetch requests taking a token.
	admit sync.Mutex
}

// NewHTTPSynthesizer validates the endpoint and builds the client.
func NewHTTPSynthesizer(opts HTTPOptions) (*HTTPSynthesizer, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid synthesis endpoint %q", opts.Endpoint)
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 120
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("synth")
	}
	opts.Decoder.Format = opts.Format
	every := time.Minute / time.Duration(opts.RequestsPerMinute)

	return &HTTPSynthesizer{
		endpoint: u,
		rate:     opts.Rate,
		format:   opts.Format,
		client:   opts.Client,
		limiter:  rate.NewLimiter(rate.Every(every), limiterBurst),
		every:    every,
		decoder:  opts.Decoder,
		log:      opts.Logger,
	}, nil
}

// Name implements Synthesizer.
func (s *HTTPSynthesizer) Name() string { return "http" }

// Format implements Synthesizer.
func (s *HTTPSynthesizer) Format() audio.Format { return s.format }

// Synthesize implements Synthesizer.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	if err := s.wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Backend: "http", Op: "rate limit", Err: err}
	}

	u := *s.endpoint
	q := u.Query()
	q.Set("text", text)
	if s.rate != "" {
		q.Set("rate", s.rate)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Backend: "http", Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "audio/mpeg, audio/L16, application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Backend: "http", Op: "request", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Backend: "http", Op: "read response", Err: err}
	}
	if len(body) > maxResponseSize {
		return nil, &Error{Backend: "http", Op: "read response", Err: fmt.Errorf("response larger than %d bytes", maxResponseSize)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Backend: "http", Op: "synthesize", Err: responseError(resp.StatusCode, body)}
	}
	if len(body) == 0 {
		return nil, &Error{Backend: "http", Op: "synthesize", Err: ErrNoAudio}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	s.log.Debug("synthesized", "chars", len(text), "bytes", len(body), "type", mediaType)
	switch mediaType {
	case "audio/l16", "audio/pcm", "application/octet-stream":
		return body, nil
	default:
		pcm, err := s.decoder.Decode(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &Error{Backend: "http", Op: "decode " + mediaType, Err: err}
		}
		return pcm, nil
	}
}

// wait takes a limiter token. Prefetch requests only take one while
// reservedTokens more stay available for on-demand synthesis.
func (s *HTTPSynthesizer) wait(ctx context.Context) error {
	if !IsPrefetch(ctx) {
		return s.limiter.Wait(ctx)
	}

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		s.admit.Lock()
		ok := s.limiter.Tokens() >= 1+reservedTokens && s.limiter.Allow()
		s.admit.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Health checks the server's /health endpoint.
func (s *HTTPSynthesizer) Health(ctx context.Context) error {
	u := s.endpoint.ResolveReference(&url.URL{Path: "/health"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Backend: "http", Op: "health", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Backend: "http", Op: "health", Err: responseError(resp.StatusCode, body)}
	}
	return nil
}

// responseError prefers the server's {"error": "..."} message.
func responseError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("status %d: %s", status, payload.Error)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("status %d: %s", status, msg)
}
