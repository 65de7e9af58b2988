package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeAmbiguous  = "AMBIGUOUS_SELECTION"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeExpression = "EXPRESSION_ERROR"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeRender     = "RENDER_ERROR"
)

// FlowlensError is the structured error type for all flowlens operations.
type FlowlensError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Workflow string         `json:"workflow,omitempty"`
	Cause    error          `json:"-"`
}

func (e *FlowlensError) Error() string {
	if e.Workflow != "" {
		return fmt.Sprintf("[%s] workflow %s: %s", e.Code, e.Workflow, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowlensError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowlensError.
func NewError(code, message string) *FlowlensError {
	return &FlowlensError{Code: code, Message: message}
}

// NewErrorf creates a new FlowlensError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowlensError {
	return &FlowlensError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithWorkflow attaches a workflow name to the error.
func (e *FlowlensError) WithWorkflow(name string) *FlowlensError {
	e.Workflow = name
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowlensError) WithCause(err error) *FlowlensError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowlensError) WithDetails(details map[string]any) *FlowlensError {
	e.Details = details
	return e
}
