package errors

import (
	"fmt"
	"time"
)

// Severity grades an operation failure for reporting.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// OperationError is the structured failure stored in an operation class's
// error slot. It never replaces the error of a different class.
type OperationError struct {
	Message    string            `json:"message"`
	Operation  string            `json:"operation"`
	Class      string            `json:"class"`
	Severity   Severity          `json:"severity"`
	Context    map[string]string `json:"context,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Err        error             `json:"-"`
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError builds an OperationError whose message is the cause's
// message, so the original upstream text reaches the consumer.
func NewOperationError(operation, class string, severity Severity, err error) *OperationError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &OperationError{
		Message:    msg,
		Operation:  operation,
		Class:      class,
		Severity:   severity,
		OccurredAt: time.Now().UTC(),
		Err:        err,
	}
}

// WithContext returns e after adding a context entry.
func (e *OperationError) WithContext(key, value string) *OperationError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}
