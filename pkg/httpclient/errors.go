package httpclient

import "fmt"

// RetryableError indicates a request kept failing with a transient
// status after the retry budget was spent.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
