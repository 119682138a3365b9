package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single synthesis request end to end.
const DefaultTimeout = 60 * time.Second

// maxAudioSize caps how much of a backend response is buffered (32 MB).
const maxAudioSize = 32 << 20

// maxErrorBodySize caps how much of an error body is kept for the message.
const maxErrorBodySize = 4096

// Error is returned for every failed synthesis. StatusCode is the backend's
// HTTP status when it answered with a non-success status, or 0 when it could
// not be reached or did not answer in time.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("synth: backend returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("synth: %s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport reports whether the backend was never reached or timed out.
func (e *Error) Transport() bool {
	return e.StatusCode == 0
}

// Client submits text to the speech synthesis backend and returns raw audio.
// The endpoint and bearer token are fixed at construction.
type Client struct {
	httpClient *http.Client
	url        string
	token      string
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout is used as
// the request bound.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a synthesis client for the backend at url, sending token
// as a bearer credential on every request.
func NewClient(url, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		url:        url,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the backend endpoint.
func (c *Client) URL() string {
	return c.url
}

// Synthesize sends text and voice to the backend as a multipart form and
// returns the audio bytes. It makes exactly one request and never retries.
// Every error it returns is an *Error.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, contentType, err := encodeForm(text, voice)
	if err != nil {
		return nil, &Error{Message: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &Error{Message: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "audio/mpeg")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("synth: backend unreachable",
			"url", c.url,
			"duration_ms", time.Since(start).Milliseconds(),
			"timeout", isTimeout(err),
			"error", err,
		)
		return nil, &Error{Message: "sending request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErrorMessage(resp.Body)
		slog.Error("synth: backend error",
			"url", c.url,
			"status", resp.StatusCode,
			"message", msg,
		)
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize+1))
	if err != nil {
		slog.Error("synth: reading audio failed", "url", c.url, "timeout", isTimeout(err), "error", err)
		return nil, &Error{Message: "reading response", Err: err}
	}
	if len(audio) > maxAudioSize {
		return nil, &Error{Message: "reading response", Err: fmt.Errorf("audio exceeds %d bytes", maxAudioSize)}
	}

	slog.Debug("synth: audio received",
		"voice", voice,
		"bytes", len(audio),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return audio, nil
}

// encodeForm builds the multipart body with the text and voice_id fields.
func encodeForm(text, voice string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("text", text); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("voice_id", voice); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// readErrorMessage extracts a short message from an error response body.
func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "unreadable error body"
	}
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return "empty error body"
	}
	return msg
}

// isTimeout reports whether err was caused by a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
