package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/visit"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
	synth note.Synthesizer
	now   func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, synth note.Synthesizer) *Handlers {
	return &Handlers{store: st, synth: synth, now: time.Now}
}

// Request types for each tool

// VisitListRequest represents the arguments for visit_list.
type VisitListRequest struct {
	Query  string `json:"query,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// VisitFetchRequest represents the arguments for visit_fetch.
type VisitFetchRequest struct {
	ID                string `json:"id"`
	IncludeTranscript *bool  `json:"include_transcript,omitempty"`
}

// NoteSynthesizeRequest represents the arguments for note_synthesize.
type NoteSynthesizeRequest struct {
	Transcript     string `json:"transcript,omitempty"`
	ChiefComplaint string `json:"chief_complaint,omitempty"`
	ID             string `json:"id,omitempty"`
}

// TermsExtractRequest represents the arguments for terms_extract.
type TermsExtractRequest struct {
	Transcript string `json:"transcript"`
}

// NoteExportRequest represents the arguments for note_export.
type NoteExportRequest struct {
	ID     string `json:"id"`
	Format string `json:"format,omitempty"`
}

// VisitListOutput is the visit_list result.
type VisitListOutput struct {
	store.ListOutput
	Stats visit.Stats `json:"stats"`
}

// NoteSynthesizeOutput is the note_synthesize result.
type NoteSynthesizeOutput struct {
	Note            visit.SOAPNote `json:"note"`
	Terms           []string       `json:"terms"`
	MissingSections []note.Section `json:"missing_sections"`
}

// TermsExtractOutput is the terms_extract result.
type TermsExtractOutput struct {
	Terms []string `json:"terms"`
}

// NoteExportOutput is the note_export result.
type NoteExportOutput struct {
	ID      string      `json:"id"`
	Format  note.Format `json:"format"`
	Content string      `json:"content"`
}

// HandleVisitList handles the visit_list tool call.
func (h *Handlers) HandleVisitList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VisitListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.store.ListPage(store.ListInput{
		Query:  input.Query,
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(VisitListOutput{ListOutput: *result, Stats: h.store.Stats(h.now())})
}

// HandleVisitFetch handles the visit_fetch tool call.
func (h *Handlers) HandleVisitFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VisitFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	v, err := h.store.Get(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	if input.IncludeTranscript != nil && !*input.IncludeTranscript {
		v.Transcript = ""
	}

	return successResult(v)
}

// HandleNoteSynthesize handles the note_synthesize tool call.
func (h *Handlers) HandleNoteSynthesize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteSynthesizeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	in := note.Input{Transcript: input.Transcript, ChiefComplaint: input.ChiefComplaint}
	if input.ID != "" {
		if input.Transcript != "" {
			return errorResult(errors.NewInvalidRequest("pass either id or transcript, not both")), nil
		}
		v, err := h.store.Get(input.ID)
		if err != nil {
			return errorResult(err), nil
		}
		in.Transcript = v.Transcript
		if in.ChiefComplaint == "" {
			in.ChiefComplaint = v.ChiefComplaint
		}
	}

	n, err := h.synth.Synthesize(ctx, in)
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return errorResult(errors.NewInvalidRequest("cancelled")), nil
		}
		return errorResult(err), nil
	}

	return successResult(NoteSynthesizeOutput{
		Note:            n,
		Terms:           note.ExtractTerms(in.Transcript),
		MissingSections: note.MissingSections(in.Transcript),
	})
}

// HandleTermsExtract handles the terms_extract tool call.
func (h *Handlers) HandleTermsExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TermsExtractRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(TermsExtractOutput{Terms: note.ExtractTerms(input.Transcript)})
}

// HandleNoteExport handles the note_export tool call.
func (h *Handlers) HandleNoteExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	format, err := note.ParseFormat(input.Format)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	v, err := h.store.Get(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	if v.SOAPNote == nil {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("visit %s has no approved note", v.ID))), nil
	}

	content, err := note.Render(*v.SOAPNote, format)
	if err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}

	return successResult(NoteExportOutput{ID: v.ID, Format: format, Content: content})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.ScribeError
	if stderrors.As(err, &sErr) {
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
			"status":  sErr.Status,
		}
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
