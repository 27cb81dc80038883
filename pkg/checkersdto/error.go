package checkersdto

// DomainError is a rejected outcome decoded from a response.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "checkers service error"
}

// Result is the tag every response carries.
type Result struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Err is nil for a successful result and a DomainError otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return DomainError{Code: r.ErrorReason, Message: r.Message, Retryable: r.ErrorReason == "try_again"}
}
