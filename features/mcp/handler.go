// Package mcp exposes the note tools over the MCP JSON-RPC surface: a POST
// endpoint for direct requests plus the SSE session transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blacktokki/notesearcher/features/card"
	"github.com/blacktokki/notesearcher/features/history"
	"github.com/blacktokki/notesearcher/features/notes"
	"github.com/blacktokki/notesearcher/features/search"
	"github.com/blacktokki/notesearcher/internal/auth"
	"github.com/blacktokki/notesearcher/internal/middleware"
	"github.com/blacktokki/notesearcher/internal/notebook"
)

type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// DocumentStore is the full request-scoped notebook surface the tools use.
// *notebook.Client satisfies it and, structurally, each feature's narrower
// store interface.
type DocumentStore interface {
	GetNoteByTitle(ctx context.Context, title string) (*notebook.Content, error)
	CreateNote(ctx context.Context, title, contentHTML string) (int64, error)
	UpdateNoteContent(ctx context.Context, current notebook.Content, newHTML string) error
	RenameNote(ctx context.Context, current notebook.Content, newTitle string) error
	FetchContents(ctx context.Context, types []string, withHidden bool, parentID *int64, page int) ([]notebook.Content, error)
}

// StoreFactory builds a document store bound to the caller's credential.
type StoreFactory func(authHeader string) DocumentStore

type Handler struct {
	searcher Searcher
	history  *history.Service
	cards    *card.Service
	notes    *notes.Service
	store    StoreFactory

	sessions     map[string]chan string // sessionId -> serialized JSON-RPC responses
	sessionsLock sync.RWMutex
}

func NewHandler(s Searcher, h *history.Service, c *card.Service, n *notes.Service, store StoreFactory) *Handler {
	return &Handler{
		searcher: s,
		history:  h,
		cards:    c,
		notes:    n,
		store:    store,
		sessions: make(map[string]chan string),
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "notesearcher-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		// Notifications must not generate a response
		return nil
	case "tools/list":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  ListToolsResult{Tools: toolDefinitions()},
		}
	case "tools/call":
		return h.callTool(ctx, req)
	}

	slog.Warn("unknown jsonrpc method", "method", req.Method)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name: "search_notes",
			Description: `Search the caller's notes. Default mode embeds the query and ranks chunks by semantic similarity; exact mode matches the keyword against note titles instead.

USAGE EXAMPLES:
- Conceptual: search_notes(query="ideas about onboarding")
- Title lookup: search_notes(query="2025 planning", exact=true)`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]string{
						"type":        "string",
						"description": "The search query",
					},
					"exact": map[string]interface{}{
						"type":        "boolean",
						"description": "Match against note titles instead of semantic ranking",
					},
					"page": map[string]interface{}{
						"type":        "integer",
						"description": "Zero-based result page",
						"minimum":     0,
					},
					"size": map[string]interface{}{
						"type":        "integer",
						"description": "Results per page (default 20, max 100)",
						"minimum":     1,
						"maximum":     100,
					},
					"include_hidden": map[string]interface{}{
						"type":        "boolean",
						"description": "Include hidden notes",
					},
					"include_external": map[string]interface{}{
						"type":        "boolean",
						"description": "Include externally sourced notes",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: "write_note",
			Description: `Write a note by title. Overwrites the content when the title exists, creates the note when it does not. Titles are never changed by a write; use move_note for that.`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]string{
						"type":        "string",
						"description": "Exact note title",
					},
					"content_html": map[string]string{
						"type":        "string",
						"description": "The full new body as HTML",
					},
				},
				"required": []string{"title", "content_html"},
			},
		},
		{
			Name: "list_notes",
			Description: `List notes with a short plain-text preview, optionally narrowed by a case-insensitive title keyword.`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"keyword": map[string]string{
						"type":        "string",
						"description": "Optional title keyword filter",
					},
				},
			},
		},
		{
			Name: "get_note_history",
			Description: `Reconstruct a note's revision history. Snapshots render directly; deltas are applied against their base snapshot. Revisions whose base is missing are listed separately as omitted rather than guessed at.`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]string{
						"type":        "string",
						"description": "Exact note title",
					},
					"page": map[string]interface{}{
						"type":        "integer",
						"description": "Zero-based history page",
						"minimum":     0,
					},
				},
				"required": []string{"title"},
			},
		},
		{
			Name: "move_card",
			Description: `Move a heading-bounded block (a kanban card) from one note to another. The block is the matched heading plus everything up to the next heading of equal or shallower level.

USAGE EXAMPLE:
move_card(source_title="Backlog", target_title="Doing", card_header_text="Fix login")`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source_title": map[string]string{
						"type":        "string",
						"description": "Title of the note the card is cut from",
					},
					"target_title": map[string]string{
						"type":        "string",
						"description": "Title of the note the card is appended to",
					},
					"card_header_text": map[string]string{
						"type":        "string",
						"description": "Substring of the card's heading text",
					},
				},
				"required": []string{"source_title", "target_title", "card_header_text"},
			},
		},
		{
			Name: "move_note",
			Description: `Rename a note. Titles double as paths, so 'Folder/Old' -> 'Folder/New' also moves the note between folders. Refuses to overwrite an existing title.`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"old_title": map[string]string{
						"type":        "string",
						"description": "Current note title",
					},
					"new_title": map[string]string{
						"type":        "string",
						"description": "New note title",
					},
				},
				"required": []string{"old_title", "new_title"},
			},
		},
		{
			Name: "list_boards",
			Description: `List kanban boards with their column note ids and card heading level.`,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

func (h *Handler) callTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		slog.Warn("invalid params structure", "error", err)
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
		return &resp
	}

	store := h.store(auth.Authorization(ctx))

	switch params.Name {
	case "search_notes":
		return h.toolSearch(ctx, req.ID, params.Arguments)
	case "write_note":
		return h.toolWrite(ctx, req.ID, store, params.Arguments)
	case "list_notes":
		return h.toolList(ctx, req.ID, store, params.Arguments)
	case "get_note_history":
		return h.toolHistory(ctx, req.ID, store, params.Arguments)
	case "move_card":
		return h.toolMoveCard(ctx, req.ID, store, params.Arguments)
	case "move_note":
		return h.toolMoveNote(ctx, req.ID, store, params.Arguments)
	case "list_boards":
		return h.toolBoards(ctx, req.ID, store)
	}

	slog.Warn("tool not found", "tool", params.Name)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
	return &resp
}

func (h *Handler) toolSearch(ctx context.Context, id interface{}, args json.RawMessage) *JSONRPCResponse {
	var a struct {
		Query           string `json:"query"`
		Exact           bool   `json:"exact"`
		Page            int    `json:"page"`
		Size            int    `json:"size"`
		IncludeHidden   bool   `json:"include_hidden"`
		IncludeExternal bool   `json:"include_external"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid search arguments")
		return &resp
	}
	if a.Query == "" {
		resp := makeErrorResponse(id, ErrInvalidParams, "Query is required")
		return &resp
	}

	result, err := h.searcher.Search(ctx, search.Query{
		OwnerID:         auth.OwnerID(ctx),
		Text:            a.Query,
		Exact:           a.Exact,
		Page:            a.Page,
		PageSize:        a.Size,
		IncludeHidden:   a.IncludeHidden,
		IncludeExternal: a.IncludeExternal,
	})
	if err != nil {
		return toolError(id, err)
	}

	var b strings.Builder
	if len(result.Results) == 0 {
		b.WriteString("No results found.")
	} else {
		for i, r := range result.Results {
			fmt.Fprintf(&b, "Result %d (distance: %.4f):\n", i+1, r.Distance)
			fmt.Fprintf(&b, "Note: %s (ID: %d)\n", r.Title, r.OriginalID)
			fmt.Fprintf(&b, "Content:\n%s\n\n---\n", r.Content)
		}
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", "search_notes", "result_count", len(result.Results))
	return toolText(id, b.String())
}

func (h *Handler) toolWrite(ctx context.Context, id interface{}, store DocumentStore, args json.RawMessage) *JSONRPCResponse {
	var a struct {
		Title       string `json:"title"`
		ContentHTML string `json:"content_html"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid write arguments")
		return &resp
	}

	result, err := h.notes.Write(ctx, store, a.Title, a.ContentHTML)
	if err != nil {
		return toolError(id, err)
	}

	verb := "content updated"
	if result.Created {
		verb = "created"
	}
	slog.InfoContext(ctx, "tool execution completed", "tool", "write_note", "note_id", result.ID)
	return toolText(id, fmt.Sprintf("Note %q (ID: %d) %s.", result.Title, result.ID, verb))
}

func (h *Handler) toolList(ctx context.Context, id interface{}, store DocumentStore, args json.RawMessage) *JSONRPCResponse {
	var a struct {
		Keyword string `json:"keyword"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			resp := makeErrorResponse(id, ErrInvalidParams, "Invalid list arguments")
			return &resp
		}
	}

	summaries, err := h.notes.List(ctx, store, a.Keyword)
	if err != nil {
		return toolError(id, err)
	}
	if len(summaries) == 0 {
		return toolText(id, "No notes found.")
	}

	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "ID: %d | Title: %s | Preview: %s...\n", s.ID, s.Title, s.Preview)
	}
	return toolText(id, b.String())
}

func (h *Handler) toolHistory(ctx context.Context, id interface{}, store DocumentStore, args json.RawMessage) *JSONRPCResponse {
	var a struct {
		Title string `json:"title"`
		Page  int    `json:"page"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid history arguments")
		return &resp
	}

	result, err := h.history.Resolve(ctx, store, a.Title, a.Page)
	if err != nil {
		return toolError(id, err)
	}

	var b strings.Builder
	if len(result.Revisions) == 0 && len(result.Omitted) == 0 {
		b.WriteString("No revisions found.")
	}
	for _, rev := range result.Revisions {
		fmt.Fprintf(&b, "[%s] %s (ID: %d)\n%s\n\n---\n", rev.Timestamp, rev.Kind, rev.ID, rev.Content)
	}
	for _, om := range result.Omitted {
		fmt.Fprintf(&b, "[unrestorable] DELTA (ID: %d, base: %d): %s\n", om.ID, om.SnapshotRef, om.Reason)
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", "get_note_history",
		"revisions", len(result.Revisions), "omitted", len(result.Omitted))
	return toolText(id, b.String())
}

func (h *Handler) toolMoveCard(ctx context.Context, id interface{}, store DocumentStore, args json.RawMessage) *JSONRPCResponse {
	var a struct {
		SourceTitle    string `json:"source_title"`
		TargetTitle    string `json:"target_title"`
		CardHeaderText string `json:"card_header_text"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid move_card arguments")
		return &resp
	}

	result, err := h.cards.Move(ctx, store, a.SourceTitle, a.TargetTitle, a.CardHeaderText)
	if err != nil {
		return toolError(id, err)
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", "move_card",
		"source_id", result.SourceID, "target_id", result.TargetID)
	return toolText(id, fmt.Sprintf("Moved card %q from %q to %q and created snapshots for both.",
		result.Heading, result.SourceTitle, result.TargetTitle))
}

func (h *Handler) toolMoveNote(ctx context.Context, id interface{}, store DocumentStore, args json.RawMessage) *JSONRPCResponse {
	var a struct {
		OldTitle string `json:"old_title"`
		NewTitle string `json:"new_title"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid move_note arguments")
		return &resp
	}

	result, err := h.notes.Rename(ctx, store, a.OldTitle, a.NewTitle)
	if err != nil {
		return toolError(id, err)
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", "move_note", "note_id", result.ID)
	return toolText(id, fmt.Sprintf("Successfully moved/renamed note from %q to %q.", a.OldTitle, a.NewTitle))
}

func (h *Handler) toolBoards(ctx context.Context, id interface{}, store DocumentStore) *JSONRPCResponse {
	boards, err := h.notes.Boards(ctx, store)
	if err != nil {
		return toolError(id, err)
	}
	if len(boards) == 0 {
		return toolText(id, "No boards found.")
	}

	var b strings.Builder
	for _, board := range boards {
		fmt.Fprintf(&b, "ID: %d | Title: %s | Columns: %v (H%d)\n",
			board.ID, board.Title, board.NoteIDs, board.HeaderLevel)
	}
	return toolText(id, b.String())
}

func toolText(id interface{}, text string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: text}},
		},
	}
}

// toolError renders a service error inside the tool result, so the model
// sees what went wrong instead of a bare protocol failure.
func toolError(id interface{}, err error) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		},
	}
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}

	resp := h.processRequest(r.Context(), req)
	if resp != nil {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	} else {
		// Notification, just return OK
		w.WriteHeader(http.StatusOK)
	}
}

// HandleSSE establishes the SSE connection and manages the session.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.New().String()
	msgChan := make(chan string, 100)

	h.sessionsLock.Lock()
	h.sessions[sessionID] = msgChan
	h.sessionsLock.Unlock()

	defer func() {
		h.sessionsLock.Lock()
		delete(h.sessions, sessionID)
		h.sessionsLock.Unlock()
		close(msgChan)
		slog.Info("sse session ended", "session_id", sessionID)
	}()

	slog.Info("sse session started", "session_id", sessionID)

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s/mcp/messages?sessionId=%s", scheme, r.Host, sessionID)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", html.EscapeString(endpoint))
	w.(http.Flusher).Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			w.(http.Flusher).Flush()
		case <-ticker.C:
			// Keep-alive comment to prevent proxy timeouts
			fmt.Fprintf(w, ": keepalive\n\n")
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleMessage accepts POST messages associated with an SSE session and
// answers over the session's event stream.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.writeHTTPError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing sessionId", correlationID)
		return
	}

	h.sessionsLock.RLock()
	msgChan, exists := h.sessions[sessionID]
	h.sessionsLock.RUnlock()

	if !exists {
		h.writeHTTPError(w, http.StatusNotFound, "NOT_FOUND", "Session not found", correlationID)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeHTTPError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON", correlationID)
		return
	}

	// MCP spec: acknowledge immediately, answer over the stream
	w.WriteHeader(http.StatusAccepted)

	// Detached context keeps the credential and correlation id but ignores
	// the POST request's cancellation.
	bgCtx := context.WithoutCancel(r.Context())

	go func() {
		resp := h.processRequest(bgCtx, req)
		if resp == nil {
			return
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal response", "error", err, "correlation_id", correlationID)
			return
		}

		h.sessionsLock.RLock()
		defer h.sessionsLock.RUnlock()

		defer func() {
			if rec := recover(); rec != nil {
				slog.Warn("failed to send to sse channel (closed)", "session_id", sessionID, "error", rec)
			}
		}()

		select {
		case msgChan <- string(respBytes):
		default:
			slog.Warn("session channel full, dropping message", "session_id", sessionID, "correlation_id", correlationID)
		}
	}()
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	resp := makeErrorResponse(id, code, message)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func (h *Handler) writeHTTPError(w http.ResponseWriter, status int, code, message, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"status": "error",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": correlationID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
