package web

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe/internal/config"
	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/recording"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/visit"
	"github.com/mediscribe/scribe/internal/workflow"
)

// Handlers contains HTTP route handlers for the relay, the app API and the pages.
type Handlers struct {
	orch     *workflow.Orchestrator
	recorder *recording.Controller
	capture  *recording.PushCapture
	stt      SpeechToText
	cfg      *config.Config
	log      zerolog.Logger
	renderer *Renderer
	now      func() time.Time
}

// VisitListResponse is the body of GET /api/visits.
type VisitListResponse struct {
	Items      []visit.VisitSummary `json:"items"`
	Pagination store.Pagination     `json:"pagination"`
	Stats      visit.Stats          `json:"stats"`
}

// WorkflowResponse is the body of the workflow endpoints.
type WorkflowResponse struct {
	View        workflow.View    `json:"view"`
	ActiveVisit *visit.Visit     `json:"activeVisit"`
	Recording   recording.Status `json:"recording"`
}

// HandleListVisits handles GET /api/visits with dashboard stats.
func (h *Handlers) HandleListVisits(c echo.Context) error {
	st := h.orch.Store()
	out, err := st.ListPage(store.ListInput{
		Query:  c.QueryParam("q"),
		Status: c.QueryParam("status"),
		Limit:  parseIntParam(c, "limit", store.DefaultListLimit),
		Offset: parseIntParam(c, "offset", 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, VisitListResponse{
		Items:      out.Items,
		Pagination: out.Pagination,
		Stats:      st.Stats(h.now()),
	})
}

// HandleGetVisit handles GET /api/visits/:id.
func (h *Handlers) HandleGetVisit(c echo.Context) error {
	v, err := h.orch.Store().Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// HandleVisitNote handles GET /api/visits/:id/note?format=text|markdown|html.
func (h *Handlers) HandleVisitNote(c echo.Context) error {
	v, err := h.orch.Store().Get(c.Param("id"))
	if err != nil {
		return err
	}
	if v.SOAPNote == nil {
		return errors.NewInvalidRequest(fmt.Sprintf("visit %s has no approved note", v.ID))
	}
	return renderNote(c, *v.SOAPNote, c.QueryParam("format"))
}

// HandleWorkflowState handles GET /api/workflow.
func (h *Handlers) HandleWorkflowState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workflowResponse())
}

// HandleStartVisit handles POST /api/workflow/start with optional patient details.
func (h *Handlers) HandleStartVisit(c echo.Context) error {
	var info workflow.PatientInfo
	if err := bindJSON(c, &info); err != nil {
		return err
	}
	if _, err := h.orch.StartNewVisit(c.Request().Context(), info); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.workflowResponse())
}

// HandleReviewVisit handles POST /api/workflow/review/:id.
func (h *Handlers) HandleReviewVisit(c echo.Context) error {
	if _, err := h.orch.ReviewVisit(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.workflowResponse())
}

// HandleCancelVisit handles POST /api/workflow/cancel.
func (h *Handlers) HandleCancelVisit(c echo.Context) error {
	if err := h.orch.Cancel(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.workflowResponse())
}

// HandleBack handles POST /api/workflow/back.
func (h *Handlers) HandleBack(c echo.Context) error {
	if err := h.orch.Back(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.workflowResponse())
}

// HandleDraft handles GET /api/workflow/draft. It waits for the draft note
// unless wait=false, in which case an unfinished draft answers 202.
func (h *Handlers) HandleDraft(c echo.Context) error {
	draft, err := h.orch.Draft()
	if err != nil {
		return err
	}
	if c.QueryParam("wait") == "false" && !draft.Ready() {
		return c.JSON(http.StatusAccepted, map[string]bool{"pending": true})
	}

	n, err := draft.Await(c.Request().Context())
	if err != nil {
		return err
	}
	return renderNote(c, n, c.QueryParam("format"))
}

type approveRequest struct {
	ID    string          `json:"id"`
	Note  *visit.SOAPNote `json:"note,omitempty"`
	Edits *note.Edits     `json:"edits,omitempty"`
}

// HandleApprove handles POST /api/workflow/approve. A submitted note is merged onto
// the current draft, keeping the draft's confidence scores. Edits are applied on top.
func (h *Handlers) HandleApprove(c echo.Context) error {
	var req approveRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	draft, err := h.orch.Draft()
	if err != nil {
		return err
	}
	n, err := draft.Await(ctx)
	if err != nil {
		return err
	}
	if req.Note != nil {
		n = note.Merge(n, *req.Note)
	}
	if req.Edits != nil {
		n = note.Edit(n, *req.Edits)
	}

	v, err := h.orch.Approve(ctx, req.ID, n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// HandleRecordingStatus handles GET /api/recording.
func (h *Handlers) HandleRecordingStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.recorder.Status())
}

// HandleRecordingStart handles POST /api/recording/start.
func (h *Handlers) HandleRecordingStart(c echo.Context) error {
	if err := h.orch.StartRecording(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.recorder.Status())
}

// HandleRecordingPause handles POST /api/recording/pause.
func (h *Handlers) HandleRecordingPause(c echo.Context) error {
	if err := h.recorder.Pause(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.recorder.Status())
}

// HandleRecordingResume handles POST /api/recording/resume.
func (h *Handlers) HandleRecordingResume(c echo.Context) error {
	if err := h.recorder.Resume(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.recorder.Status())
}

// HandleRecordingStop handles POST /api/recording/stop. It returns once the
// transcript is back and the workflow has moved to review.
func (h *Handlers) HandleRecordingStop(c echo.Context) error {
	if _, err := h.orch.FinishRecording(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.workflowResponse())
}

// HandleRecordingCancel handles POST /api/recording/cancel. The visit stays in
// the recording view with an idle session.
func (h *Handlers) HandleRecordingCancel(c echo.Context) error {
	if err := h.recorder.Cancel(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.recorder.Status())
}

// HandleRecordingChunk handles POST /api/recording/chunks with one recorded chunk as body.
func (h *Handlers) HandleRecordingChunk(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, h.cfg.MaxBufferBytes)
	chunk, err := io.ReadAll(body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio chunk too large")
		}
		return errors.NewInvalidRequest("read chunk: " + err.Error())
	}
	if len(chunk) == 0 {
		return errors.NewInvalidRequest("empty audio chunk")
	}

	if err := h.capture.Push(c.Request().Context(), chunk); err != nil {
		if stderrors.Is(err, recording.ErrNotCapturing) {
			return errors.NewNoActiveSession()
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type sectionRequest struct {
	Section string `json:"section"`
}

// HandleRecordingSection handles POST /api/recording/section.
func (h *Handlers) HandleRecordingSection(c echo.Context) error {
	var req sectionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, ok := note.ParseSection(req.Section)
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown section %q", req.Section))
	}
	if err := h.recorder.MarkSection(s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.recorder.Status())
}

func (h *Handlers) workflowResponse() WorkflowResponse {
	st := h.orch.State()
	return WorkflowResponse{
		View:        st.View,
		ActiveVisit: st.Active,
		Recording:   h.recorder.Status(),
	}
}

func renderNote(c echo.Context, n visit.SOAPNote, format string) error {
	if format == "" || format == "json" {
		return c.JSON(http.StatusOK, n)
	}
	f, err := note.ParseFormat(format)
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	out, err := note.Render(n, f)
	if err != nil {
		return err
	}
	switch f {
	case note.FormatHTML:
		return c.HTML(http.StatusOK, out)
	case note.FormatMarkdown:
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(out))
	default:
		return c.String(http.StatusOK, out)
	}
}

// bindJSON binds an optional JSON body. An empty body leaves v untouched.
func bindJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if stderrors.As(err, &he) {
			return errors.NewInvalidRequest(fmt.Sprintf("invalid request body: %v", he.Message))
		}
		return err
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(c echo.Context, name string, defaultVal int) int {
	s := c.QueryParam(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
