package engine

import "fmt"

// Error kinds a tool handler can report. The dispatch loop translates
// them into one user-safe sentence; raw provider or SQL text never
// crosses this boundary.
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindTransport   = "transport"
	KindPersistence = "persistence"
	KindInternal    = "internal"
)

// OperationError is the tagged failure type every tool handler returns
// for expected failure modes. UserMessage is already safe to show.
type OperationError struct {
	Kind        string
	UserMessage string
	Err         error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind + ": " + e.UserMessage
}

func (e *OperationError) Unwrap() error { return e.Err }

// Validation builds a validation error whose message asks the user for
// the missing piece.
func Validation(userMessage string) *OperationError {
	return &OperationError{Kind: KindValidation, UserMessage: userMessage}
}

// NotFound builds a miss error for lookups.
func NotFound(userMessage string) *OperationError {
	return &OperationError{Kind: KindNotFound, UserMessage: userMessage}
}

// Transport wraps a provider failure.
func Transport(err error) *OperationError {
	return &OperationError{
		Kind:        KindTransport,
		UserMessage: "Não consegui falar com o WhatsApp agora. Quer tentar de novo em instantes?",
		Err:         err,
	}
}

// Persistence wraps a storage failure.
func Persistence(err error) *OperationError {
	return &OperationError{
		Kind:        KindPersistence,
		UserMessage: "Tive um problema ao salvar os dados. Pode tentar de novo?",
		Err:         err,
	}
}

// Internal wraps anything unexpected.
func Internal(err error) *OperationError {
	return &OperationError{
		Kind:        KindInternal,
		UserMessage: "Não consegui fazer isso agora. Quer tentar de novo?",
		Err:         err,
	}
}

// ToolResult is what one dispatched tool call produces. On success Data
// holds the structured result and PresentationHint the preformatted
// string the final LLM turn must copy verbatim. On failure Error holds
// the user-safe message only.
type ToolResult struct {
	Tool             string `json:"tool"`
	Success          bool   `json:"success"`
	Data             any    `json:"data,omitempty"`
	Error            string `json:"error,omitempty"`
	PresentationHint string `json:"presentation_hint,omitempty"`
	MediaPath        string `json:"-"`
}

func successResult(tool string, data any, hint, mediaPath string) ToolResult {
	return ToolResult{Tool: tool, Success: true, Data: data, PresentationHint: hint, MediaPath: mediaPath}
}

func failureResult(tool string, opErr *OperationError) ToolResult {
	msg := opErr.UserMessage
	if msg == "" {
		msg = Internal(nil).UserMessage
	}
	return ToolResult{Tool: tool, Success: false, Error: msg}
}
