package models

// Severity of an execution result.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Result is what an integration reports after executing a request.
type Result struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// OK builds a successful result.
func OK(message string) Result {
	return Result{Success: true, Message: message, Severity: SeverityInfo}
}

// Fail builds an error-severity failure.
func Fail(message string) Result {
	return Result{Success: false, Message: message, Severity: SeverityError}
}

// Skipped builds an info-severity failure, used for expected refusals such
// as an action still cooling down.
func Skipped(message string) Result {
	return Result{Success: false, Message: message, Severity: SeverityInfo}
}
