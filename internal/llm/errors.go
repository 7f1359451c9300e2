package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError marks a provider failure worth retrying elsewhere: rate
// limits, 5xx responses and transport errors.
type TransientError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: transient status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: transient: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err carries a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsTransientStatus is true for 408, 429 and every 5xx.
func IsTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}
