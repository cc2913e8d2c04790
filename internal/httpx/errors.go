package httpx

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrExhausted is returned when all retry attempts failed.
	ErrExhausted = errors.New("retry attempts exhausted")
	// ErrDataUnavailable marks a payload that parsed but lacks an
	// expected field.
	ErrDataUnavailable = errors.New("expected field missing in upstream payload")
)

// BanError reports a request suppressed or rejected by an upstream ban
// window. Remaining is zero when the ban was just detected.
type BanError struct {
	Remaining time.Duration
}

func (e *BanError) Error() string {
	return fmt.Sprintf("banned by upstream, %s remaining", e.Remaining)
}

// StatusError reports an unexpected HTTP status that is not retried.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.Code)
}

// IsBanned reports whether err carries a BanError.
func IsBanned(err error) bool {
	var banErr *BanError
	return errors.As(err, &banErr)
}
