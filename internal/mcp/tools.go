package mcp

import "github.com/mark3labs/mcp-go/mcp"

var visitListToolDef = mcp.NewTool("visit_list",
	mcp.WithDescription("List visits newest first, optionally filtered by a patient name or chief complaint substring and by status. Returns summaries without transcripts plus dashboard stats."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Description("Case-insensitive substring matched against patient name and chief complaint")),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("in_progress", "pending", "approved")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Number of matching visits to skip")),
)

var visitFetchToolDef = mcp.NewTool("visit_fetch",
	mcp.WithDescription("Fetch one visit by id, including its transcript, detected terms and approved SOAP note."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Visit id, e.g. visit_001")),
	mcp.WithBoolean("include_transcript", mcp.Description("Include the transcript (default true)")),
)

var noteSynthesizeToolDef = mcp.NewTool("note_synthesize",
	mcp.WithDescription("Draft a SOAP note from a transcript using section keyword heuristics. Pass either a transcript or the id of a stored visit."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("transcript", mcp.Description("Visit transcript")),
	mcp.WithString("chief_complaint", mcp.Description("Chief complaint for the note header")),
	mcp.WithString("id", mcp.Description("Stored visit to synthesize from instead of a transcript")),
)

var termsExtractToolDef = mcp.NewTool("terms_extract",
	mcp.WithDescription("Detect clinical keywords from the fixed dictionary in a transcript."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("transcript", mcp.Required(), mcp.Description("Text to scan")),
)

var noteExportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Render the approved SOAP note of a visit as plain text, markdown or HTML."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Visit id")),
	mcp.WithString("format", mcp.Description("Output format (default text)"), mcp.Enum("text", "markdown", "html")),
)
