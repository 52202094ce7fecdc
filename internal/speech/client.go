package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Static errors for speech client operations.
var (
	// ErrEmptyText is returned when there is no text to synthesize.
	ErrEmptyText = errors.New("speech: text is required")
	// ErrServerError is returned when the backend returns a 5xx status code.
	ErrServerError = errors.New("speech: server error")
	// ErrRateLimited is returned when the backend returns a 429 status code.
	ErrRateLimited = errors.New("speech: rate limited")
	// ErrRequestFailed is returned when the request fails with any other
	// non-2xx status code.
	ErrRequestFailed = errors.New("speech: request failed")
)

// defaultBaseURL is the Google Translate TTS endpoint.
const defaultBaseURL = "https://translate.google.com/translate_tts"

// HTTPClient is an HTTP implementation of the Synthesizer interface.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// Compile-time check that HTTPClient implements Synthesizer.
var _ Synthesizer = (*HTTPClient)(nil)

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the speech backend.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = u
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewHTTPClient creates a new speech HTTP client.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Synthesize renders one text chunk as MP3 bytes.
// Transient failures (5xx, 429, transport errors) are retried with
// exponential backoff up to the configured maximum.
func (c *HTTPClient) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if lang == "" {
		lang = "en"
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("speech: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		clip, err := c.doRequest(ctx, text, lang)
		if err == nil {
			return clip, nil
		}
		lastErr = err

		// Only server errors, rate limits and transport failures are
		// worth retrying.
		if !errors.Is(err, ErrServerError) && !errors.Is(err, ErrRateLimited) && !isTransportError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("speech: giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

// doRequest performs a single synthesis request.
func (c *HTTPClient) doRequest(ctx context.Context, text, lang string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("q", text)
	q.Set("tl", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read response: %w", err)
	}
	return clip, nil
}

// transportError marks network-level failures as retryable.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("speech: transport error: %v", e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}

func isTransportError(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
