// Package ghostline defines the request and event types for ghostline IPC.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line.
package ghostline

// Request asks the daemon for an inline completion at an editor offset.
type Request struct {
	// RequestID is a per-session incrementing identifier assigned by the editor.
	// The daemon echoes it back on every event for ordering.
	RequestID int `json:"request_id"`
	// SessionID identifies the editor session. A new request for the same
	// session cancels the one in flight.
	SessionID string `json:"session_id"`
	// URI identifies the document being edited.
	URI string `json:"uri"`
	// LanguageID is the editor's language identifier (e.g. "go", "shellscript").
	LanguageID string `json:"language_id,omitempty"`
	// Text is the full document content.
	Text string `json:"text"`
	// Offset is the byte offset of the caret within Text. Generated text is
	// inserted here.
	Offset int `json:"offset"`
	// Cwd is the workspace directory used for project context.
	Cwd string `json:"cwd,omitempty"`
	// Progress asks the daemon to report a busy indicator for this request.
	Progress bool `json:"progress,omitempty"`
}

// Event types streamed back for a completion request.
const (
	EventProgressBegin = "progress_begin"
	EventProgressEnd   = "progress_end"
	EventClearPreview  = "clear_preview"
	EventApply         = "apply"
	EventNotify        = "notify"
	EventDone          = "done"
)

// Event is one line of the daemon's reply to a completion request.
// The stream always ends with an EventDone event.
type Event struct {
	RequestID int    `json:"request_id"`
	Type      string `json:"type"`
	// Anchor is the document offset the event applies to (clear_preview, apply).
	Anchor int `json:"anchor,omitempty"`
	// Text is the generated text to insert (apply).
	Text string `json:"text,omitempty"`
	// Title describes the busy indicator (progress_begin).
	Title string `json:"title,omitempty"`
	// Notification is the user-visible message (notify).
	Notification *Notification `json:"notification,omitempty"`
	// Outcome is "complete", "error" or "cancelled" (done).
	Outcome string `json:"outcome,omitempty"`
}

// Notification is a user-visible message with an optional remediation action.
type Notification struct {
	Level   string  `json:"level"`
	Message string  `json:"message"`
	Action  *Action `json:"action,omitempty"`
}

// Action is something the user can invoke from a notification.
type Action struct {
	// ID is a machine-readable action identifier (e.g. "open_settings").
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Error describes a daemon-side error returned to the client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "not_configured", "api_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ContextRequest is sent by the editor to warm the project context cache.
type ContextRequest struct {
	// Type is always "context".
	Type string `json:"type"`
	// Cwd is the directory to pre-cache context for.
	Cwd string `json:"cwd"`
}

// ContextResponse is sent in response to a ContextRequest.
type ContextResponse struct {
	// OK is true when the warm-up was accepted.
	OK    bool   `json:"ok"`
	Error *Error `json:"error,omitempty"`
}

// CancelRequest cancels the in-flight completion of a session.
type CancelRequest struct {
	// Type is always "cancel".
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// CancelResponse is sent in response to a CancelRequest.
type CancelResponse struct {
	OK bool `json:"ok"`
	// Cancelled is true when a request was actually in flight.
	Cancelled bool   `json:"cancelled"`
	Error     *Error `json:"error,omitempty"`
}

// AcceptRequest reports that the user accepted a suggestion. Accepted
// snippets feed the related-snippet index.
type AcceptRequest struct {
	// Type is always "accept".
	Type       string `json:"type"`
	LanguageID string `json:"language_id,omitempty"`
	Text       string `json:"text"`
}

// AcceptResponse is sent in response to an AcceptRequest.
type AcceptResponse struct {
	OK    bool   `json:"ok"`
	Error *Error `json:"error,omitempty"`
}

// ConfigRequest is sent by a client for configuration operations.
type ConfigRequest struct {
	// Action is one of "get", "reload", "defaults", "default_prompt",
	// "validate" or "models".
	Action string `json:"action"`
}

// ConfigResponse is sent in response to a ConfigRequest.
type ConfigResponse struct {
	// Config is the current configuration (for "get", "reload", and "defaults").
	Config *Config `json:"config,omitempty"`
	// Prompt is the default prompt template (for "default_prompt").
	Prompt string `json:"prompt,omitempty"`
	// Warnings contains configuration warnings (for "validate").
	Warnings []string `json:"warnings,omitempty"`
	// Models lists the code models offered for the configured plan (for "models").
	Models []string `json:"models,omitempty"`
	Error  *Error   `json:"error,omitempty"`
}
