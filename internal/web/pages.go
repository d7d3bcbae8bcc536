package web

import (
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/workflow"
)

// HandleIndex handles GET / and renders the page for the current view.
func (h *Handlers) HandleIndex(c echo.Context) error {
	st := h.orch.State()
	switch st.View {
	case workflow.ViewRecording:
		return c.Render(http.StatusOK, "recording", RecordingPageData{
			PageData: h.renderer.page("Recording", string(st.View)),
			Visit:    *st.Active,
			Status:   h.recorder.Status(),
			Sections: note.Sections(),
		})
	case workflow.ViewReview:
		return h.renderReview(c, st)
	default:
		return h.renderDashboard(c)
	}
}

func (h *Handlers) renderDashboard(c echo.Context) error {
	query := c.QueryParam("q")
	s := h.orch.Store()
	out, err := s.ListPage(store.ListInput{
		Query:  query,
		Limit:  parseIntParam(c, "limit", store.DefaultListLimit),
		Offset: parseIntParam(c, "offset", 0),
	})
	if err != nil {
		return err
	}

	return c.Render(http.StatusOK, "dashboard", DashboardPageData{
		PageData:   h.renderer.page("Visits", string(workflow.ViewDashboard)),
		Query:      query,
		Items:      out.Items,
		Pagination: out.Pagination,
		Stats:      s.Stats(h.now()),
	})
}

func (h *Handlers) renderReview(c echo.Context, st workflow.State) error {
	data := ReviewPageData{
		PageData: h.renderer.page("Review", string(st.View)),
		Visit:    *st.Active,
		Pending:  true,
	}

	// the page polls for an unfinished draft instead of blocking here
	if draft, err := h.orch.Draft(); err == nil && draft.Ready() {
		n, err := draft.Await(c.Request().Context())
		if err != nil {
			return err
		}
		html, err := note.HTML(n)
		if err != nil {
			return err
		}
		data.Pending = false
		data.Note = n
		data.NoteHTML = template.HTML(html)
	}

	return c.Render(http.StatusOK, "review", data)
}
