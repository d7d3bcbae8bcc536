package web

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/transcribe"
)

// SpeechToText turns recorded audio into a transcript.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

const configErrorDetails = "Invalid or missing GEMINI_API_KEY. Please check your API key in the .env file"

// relayError is the relay's wire error shape, kept separate from the app API's.
type relayError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// HandleTranscribe handles POST /api/transcribe with a multipart "audio" field.
func (h *Handlers) HandleTranscribe(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, relayError{Error: "No audio file provided"})
	}

	audio, err := h.spoolUpload(fh)
	if err != nil {
		return h.relayFailure(c, "Transcription failed", err)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = transcribe.MIMEType(fh.Filename)
	}

	text, err := h.stt.Transcribe(c.Request().Context(), audio, mimeType)
	if err != nil {
		return h.relayFailure(c, "Transcription failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"transcript": text})
}

// HandleTranscribeBuffer handles POST /api/transcribe-buffer with the raw audio as body.
func (h *Handlers) HandleTranscribeBuffer(c echo.Context) error {
	req := c.Request()
	body := http.MaxBytesReader(c.Response(), req.Body, h.cfg.MaxBufferBytes)
	audio, err := io.ReadAll(body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			return c.JSON(http.StatusRequestEntityTooLarge, relayError{
				Error:   "Audio payload too large",
				Details: fmt.Sprintf("limit is %d bytes", tooBig.Limit),
			})
		}
		return h.relayFailure(c, "Buffer transcription failed", err)
	}
	if len(audio) == 0 {
		return c.JSON(http.StatusBadRequest, relayError{Error: "No audio data provided"})
	}

	mimeType := transcribe.DefaultMIMEType
	if mt, _, err := mime.ParseMediaType(req.Header.Get("Content-Type")); err == nil && mt != "application/octet-stream" {
		mimeType = mt
	}

	text, err := h.stt.Transcribe(req.Context(), audio, mimeType)
	if err != nil {
		return h.relayFailure(c, "Buffer transcription failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"transcript": text})
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server running",
	})
}

func (h *Handlers) relayFailure(c echo.Context, label string, err error) error {
	h.log.Error().Err(err).Str("request_id", requestID(c)).Msg(label)

	if errors.Is(err, errors.ErrProviderConfig) {
		return c.JSON(http.StatusInternalServerError, relayError{
			Error:   "Transcription service configuration error",
			Details: configErrorDetails,
		})
	}
	return c.JSON(http.StatusInternalServerError, relayError{Error: label, Details: err.Error()})
}

// spoolUpload writes the upload to UPLOAD_DIR, reads it back and removes it.
func (h *Handlers) spoolUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	ext := filepath.Ext(fh.Filename)
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	path := filepath.Join(h.cfg.UploadDir, fmt.Sprintf("%d-%s%s", h.now().UnixMilli(), uuid.NewString(), ext))

	dst, err := createSpoolFile(path)
	if err != nil {
		return nil, fmt.Errorf("create temp upload: %w", err)
	}
	defer os.Remove(path)

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, fmt.Errorf("write temp upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("write temp upload: %w", err)
	}

	return readSpoolFile(path)
}

func readAll(f *os.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read temp upload: %w", err)
	}
	return data, nil
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
