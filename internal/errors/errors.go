package errors

import (
	"errors"
	"fmt"
)

var (
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnknownTemplate      = errors.New("unknown template")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// RateLimitedError is the soft denial returned when a customer has hit
// a send-frequency cap. It carries the seconds until the blocked send
// is expected to succeed.
type RateLimitedError struct {
	RetryAfterSeconds int
	Reason            string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Reason)
}

// NewRateLimited builds a RateLimitedError with retry-after seconds.
func NewRateLimited(retryAfter int, reason string) error {
	return &RateLimitedError{RetryAfterSeconds: retryAfter, Reason: reason}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) || errors.Is(err, ErrNotificationNotFound)
}

func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// AsRateLimited unwraps err into a RateLimitedError, if it is one.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
