package domain

import "fmt"

// ValidationError marks an incoming record that cannot be processed.
// It blocks that row only; the batch continues.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
