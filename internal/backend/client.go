package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/textbook-tutor/internal/domain"
)

// maxResponseBodySize caps how much of a reply is read (4MB).
const maxResponseBodySize = 4 << 20

// ErrUnreachable wraps every failure to obtain a well-formed reply: transport
// errors, timeouts, non-2xx statuses and malformed bodies.
var ErrUnreachable = errors.New("backend unreachable")

var errMissingField = errors.New("missing field in response")

// Config holds configuration for the backend client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration // per request; 0 disables
	TargetLanguage string        // sent with translate when set
	HTTPClient     *http.Client
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 60 * time.Second,
	}
}

// Client issues requests to the chat, translate and personalize endpoints.
// It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	lang    string
	logger  *slog.Logger
}

// NewClient creates a client for the backend at cfg.BaseURL.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base:    base,
		http:    httpClient,
		timeout: cfg.Timeout,
		lang:    cfg.TargetLanguage,
		logger:  logger,
	}, nil
}

// Chat sends a question with optional selection context and profile.
func (c *Client) Chat(ctx context.Context, message, selection string, profile *domain.UserProfile) (ChatResponse, error) {
	req := ChatRequest{Message: message, Context: selection}
	if profile != nil {
		payload := profile.Payload()
		req.UserProfile = &payload
	}

	var wire chatWire
	if err := c.post(ctx, "/chat", req, &wire); err != nil {
		return ChatResponse{}, err
	}
	if wire.Reply == nil {
		return ChatResponse{}, c.fail("/chat", fmt.Errorf("reply: %w", errMissingField))
	}
	return ChatResponse{Reply: *wire.Reply, Sources: wire.Sources}, nil
}

// Translate asks the backend to translate content.
func (c *Client) Translate(ctx context.Context, content string) (ContentResponse, error) {
	return c.content(ctx, "/translate", TranslateRequest{Content: content, TargetLanguage: c.lang})
}

// Personalize asks the backend to rewrite content for profile.
func (c *Client) Personalize(ctx context.Context, content string, profile domain.UserProfile) (ContentResponse, error) {
	return c.content(ctx, "/personalize", PersonalizeRequest{Content: content, UserProfile: profile.Payload()})
}

func (c *Client) content(ctx context.Context, path string, body any) (ContentResponse, error) {
	var wire contentWire
	if err := c.post(ctx, path, body, &wire); err != nil {
		return ContentResponse{}, err
	}
	if wire.Content == nil {
		return ContentResponse{}, c.fail(path, fmt.Errorf("content: %w", errMissingField))
	}
	return ContentResponse{Content: *wire.Content}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return c.fail(path, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, bytes.NewReader(data))
	if err != nil {
		return c.fail(path, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close backend response body", "path", path, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return c.fail(path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(out); err != nil {
		return c.fail(path, fmt.Errorf("decode response: %w", err))
	}

	c.logger.Debug("backend request completed", "path", path, "duration", time.Since(start))
	return nil
}

func (c *Client) fail(path string, err error) error {
	c.logger.Warn("backend request failed", "path", path, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, path, err)
}
