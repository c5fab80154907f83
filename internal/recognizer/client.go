package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/YodaGitMaster/EasyLecture/internal/transcript"
)

// Static errors for recognizer client operations.
var (
	// ErrBaseURLRequired is returned when the endpoint URL is not provided.
	ErrBaseURLRequired = errors.New("recognizer: base URL is required")
	// ErrInvalidOptions is returned when request options fail validation.
	ErrInvalidOptions = errors.New("recognizer: invalid options")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("recognizer: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("recognizer: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("recognizer: request failed")
	// ErrRecognitionFailed is returned when the server reports an error in the body.
	ErrRecognitionFailed = errors.New("recognizer: recognition failed")
)

// HTTPClient is the HTTP implementation of the Recognizer interface.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	validate    *validator.Validate
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
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

// NewClient creates a new recognizer client for the API rooted at baseURL,
// e.g. "http://localhost:8000/v1".
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 60 * time.Minute},
		validate:    validator.New(),
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Recognize uploads the audio file and returns the recognized text.
func (c *HTTPClient) Recognize(ctx context.Context, audioPath string, opts Options) (Result, error) {
	if err := c.validate.Struct(opts); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	body, contentType, err := buildForm(audioPath, opts)
	if err != nil {
		return Result{}, err
	}

	var resp transcriptionResponse
	url := c.baseURL + "/audio/transcriptions"
	if err := c.doRequestWithRetry(ctx, url, contentType, body, &resp); err != nil {
		return Result{}, err
	}
	if resp.Error != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrRecognitionFailed, resp.Error.Message)
	}

	result := Result{Text: resp.Text}
	if opts.Timestamps {
		result.Chunks = make([]transcript.Chunk, 0, len(resp.Segments))
		for _, s := range resp.Segments {
			result.Chunks = append(result.Chunks, transcript.Chunk{Start: s.Start, End: s.End, Text: s.Text})
		}
	}
	return result, nil
}

// buildForm encodes the multipart request body.
func buildForm(audioPath string, opts Options) ([]byte, string, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, "", fmt.Errorf("recognizer: open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	format := "json"
	if opts.Timestamps {
		format = "verbose_json"
	}
	fields := [][2]string{
		{"model", opts.Model},
		{"response_format", format},
		{"chunk_length", strconv.Itoa(opts.ChunkLength)},
		{"batch_size", strconv.Itoa(opts.BatchSize)},
	}
	if opts.Timestamps {
		fields = append(fields, [2]string{"timestamp_granularities[]", "segment"})
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("recognizer: write field %s: %w", kv[0], err)
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("recognizer: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("recognizer: read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("recognizer: close form: %w", err)
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url, contentType string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("recognizer: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, contentType, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("recognizer: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, url, contentType string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("recognizer: create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("recognizer: request cancelled: %w", ctx.Err())
		}
		return &retryableError{err: fmt.Errorf("recognizer: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("recognizer: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("recognizer: unmarshal response: %w", err)
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Verify interface implementation at compile time.
var _ Recognizer = (*HTTPClient)(nil)
