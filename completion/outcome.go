package completion

import "fmt"

// Position is the anchor a generated text is inserted at.
type Position struct {
	URI    string `json:"uri,omitempty"`
	Offset int    `json:"offset"`
}

// ErrorDetails describes a failed generation as reported by the provider.
type ErrorDetails struct {
	Message    string
	Code       string
	Type       string
	StatusCode int
}

// Describe returns the human-readable failure description, falling back to
// the cause when the provider sent no message.
func (d ErrorDetails) Describe(cause error) string {
	switch {
	case d.Message != "":
		return d.Message
	case cause != nil:
		return cause.Error()
	default:
		return "unknown error"
	}
}

// OutcomeKind is the state of a session.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeComplete
	OutcomeError
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeComplete:
		return "complete"
	case OutcomeError:
		return "error"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Terminal reports whether k ends a session.
func (k OutcomeKind) Terminal() bool {
	return k != OutcomePending
}

// Outcome is the result a session settled with. Text holds the final text
// for OutcomeComplete and the partial text for OutcomeCancelled.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Details ErrorDetails
	Cause   error
}
