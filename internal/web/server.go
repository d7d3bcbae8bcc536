package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe/internal/config"
	"github.com/mediscribe/scribe/internal/recording"
	"github.com/mediscribe/scribe/internal/workflow"
)

// maxJSONBody caps JSON request bodies on the app API.
const maxJSONBody = "1M"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the components the HTTP server is built from.
type Deps struct {
	Orchestrator *workflow.Orchestrator
	Recorder     *recording.Controller
	Capture      *recording.PushCapture
	STT          SpeechToText
	Config       *config.Config
	Logger       zerolog.Logger
	Version      string
}

// NewServer wires the relay, the app API and the HTML pages onto one echo instance.
func NewServer(d Deps) (*echo.Echo, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, d.Version)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		orch:     d.Orchestrator,
		recorder: d.Recorder,
		capture:  d.Capture,
		stt:      d.STT,
		cfg:      d.Config,
		log:      d.Logger,
		renderer: renderer,
		now:      time.Now,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = h.handleError

	e.Use(Recovery(d.Logger))
	e.Use(RequestID())
	e.Use(RequestLogger(d.Logger))
	e.Use(SecurityHeaders())
	if len(d.Config.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: d.Config.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Content-Type", RequestIDHeader},
		}))
	}

	// Relay
	e.POST("/api/transcribe", h.HandleTranscribe)
	e.POST("/api/transcribe-buffer", h.HandleTranscribeBuffer)
	e.GET("/api/health", h.HandleHealth)

	// Visits
	e.GET("/api/visits", h.HandleListVisits)
	e.GET("/api/visits/:id", h.HandleGetVisit)
	e.GET("/api/visits/:id/note", h.HandleVisitNote)

	// Workflow
	wf := e.Group("/api/workflow", echomw.BodyLimit(maxJSONBody))
	wf.GET("", h.HandleWorkflowState)
	wf.POST("/start", h.HandleStartVisit)
	wf.POST("/review/:id", h.HandleReviewVisit)
	wf.POST("/cancel", h.HandleCancelVisit)
	wf.POST("/back", h.HandleBack)
	wf.GET("/draft", h.HandleDraft)
	wf.POST("/approve", h.HandleApprove)

	// Recording session
	rec := e.Group("/api/recording")
	rec.GET("", h.HandleRecordingStatus)
	rec.POST("/start", h.HandleRecordingStart)
	rec.POST("/pause", h.HandleRecordingPause)
	rec.POST("/resume", h.HandleRecordingResume)
	rec.POST("/stop", h.HandleRecordingStop)
	rec.POST("/cancel", h.HandleRecordingCancel)
	rec.POST("/chunks", h.HandleRecordingChunk)
	rec.POST("/section", h.HandleRecordingSection, echomw.BodyLimit(maxJSONBody))

	// Pages
	e.GET("/", h.HandleIndex)
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServerFS(staticSub))))

	return e, nil
}

// Run starts the server and shuts it down gracefully on SIGINT/SIGTERM.
func Run(e *echo.Echo, addr string, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	log.Info().Str("addr", addr).Msg("scribe running")
	if strings.HasPrefix(addr, "0.0.0.0") || strings.HasPrefix(addr, "[::]") || strings.HasPrefix(addr, ":") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(ctx)
	}
}
