package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe/internal/errors"
)

// DefaultMIMEType is assumed when the filename does not identify the container.
const DefaultMIMEType = "audio/webm"

// Client calls the transcription relay.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for the relay at baseURL, e.g. "http://localhost:5000".
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Transcribe uploads audio as the multipart field "audio" to /api/transcribe.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "recording.webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	h.Set("Content-Type", MIMEType(filename))
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := mw.Close(); err != nil {
		return "", errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe", &body)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req)
}

// TranscribeBuffer posts raw audio to /api/transcribe-buffer with mimeType as the content type.
func (c *Client) TranscribeBuffer(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe-buffer", bytes.NewReader(audio))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", mimeType)

	return c.do(req)
}

// Health reports whether the relay answers its liveness check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewTranscriptionUnreachable(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.NewUpstreamFailure(resp.StatusCode, fmt.Sprintf("Server error: %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", req.URL.String()).Msg("transcription relay unreachable")
		return "", errors.NewTranscriptionUnreachable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTranscriptionUnreachable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := upstreamMessage(resp.StatusCode, data)
		c.log.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("transcription relay returned an error")
		return "", errors.NewUpstreamFailure(resp.StatusCode, msg)
	}

	var out transcriptResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.NewUpstreamFailure(resp.StatusCode, "Unknown server error")
	}
	return out.Transcript, nil
}

// upstreamMessage picks the relay's "error" field, falling back to the status code.
// A body that is not JSON at all yields "Unknown server error".
func upstreamMessage(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return "Unknown server error"
	}
	if e.Error == "" {
		return fmt.Sprintf("Server error: %d", status)
	}
	return e.Error
}

// MIMEType guesses an audio content type from a filename extension.
func MIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "audio/") {
		return t
	}
	return DefaultMIMEType
}
