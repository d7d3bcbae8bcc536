package web

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/recording"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/visit"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	View    string // "dashboard", "recording", "review"
}

// DashboardPageData is the template data for the visit list.
type DashboardPageData struct {
	PageData
	Query      string
	Items      []visit.VisitSummary
	Pagination store.Pagination
	Stats      visit.Stats
}

// RecordingPageData is the template data for the recording view.
type RecordingPageData struct {
	PageData
	Visit    visit.Visit
	Status   recording.Status
	Sections []note.Section
}

// ReviewPageData is the template data for the review view.
type ReviewPageData struct {
	PageData
	Visit    visit.Visit
	Pending  bool // draft note still being generated
	Note     visit.SOAPNote
	NoteHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering. It implements echo.Renderer.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer parses the layout once and clones it for every page.
func NewRenderer(templateFS fs.FS, version string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"add":            func(a, b int) int { return a + b },
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
	}

	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"dashboard": "dashboard.html",
		"recording": "recording.html",
		"review":    "review.html",
		"error":     "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}, nil
}

// Render implements echo.Renderer. For htmx requests only the "content" block
// is rendered to avoid duplicating the layout.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	block := "layout"
	if c != nil && c.Request().Header.Get("HX-Request") == "true" {
		block = "content"
	}

	// render into a buffer so a template error does not leave a half-written page
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Renderer) page(title, view string) PageData {
	return PageData{Title: title, Version: r.version, View: view}
}

// handleError is the echo error handler. App API errors are JSON
// {"error":{"code","message","status"}}; page requests get the error page.
func (h *Handlers) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	sErr := toScribeError(err)
	status := sErr.Status
	req := c.Request()

	if sErr.Status >= 500 {
		h.log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
	}

	// htmx request: return an HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		_ = c.HTML(status, fmt.Sprintf(`<div class="error-message">%s</div>`, template.HTMLEscapeString(sErr.Message)))
		return
	}

	if strings.HasPrefix(req.URL.Path, "/api/") || strings.Contains(req.Header.Get("Accept"), "application/json") {
		_ = c.JSON(status, map[string]any{
			"error": map[string]any{
				"code":    string(sErr.Code),
				"message": sErr.Message,
				"status":  status,
			},
		})
		return
	}

	if rerr := c.Render(status, "error", ErrorPageData{
		PageData:   h.renderer.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    sErr.Message,
	}); rerr != nil {
		h.log.Error().Err(rerr).Msg("render error page")
		_ = c.String(http.StatusInternalServerError, "internal server error")
	}
}

// toScribeError maps echo's routing and framework errors onto error codes.
func toScribeError(err error) *errors.ScribeError {
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		code := errors.ErrInternal
		switch {
		case he.Code == http.StatusNotFound:
			code = errors.ErrNotFound
		case he.Code >= 400 && he.Code < 500:
			code = errors.ErrInvalidRequest
		}
		return &errors.ScribeError{Code: code, Status: he.Code, Message: msg}
	}
	return errors.As(err)
}

// formatTime formats a timestamp as "Jan 2, 15:04".
func formatTime(t time.Time) string {
	return t.Format("Jan 2, 15:04")
}

// formatDuration formats seconds as m:ss.
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
