package services

// ValidationError marks failures caused by user input or wardrobe state, so
// controllers can map them to 400 instead of 500.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
