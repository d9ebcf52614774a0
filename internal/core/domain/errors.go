package domain

import "errors"

var (
	ErrGateway            = errors.New("gateway error")
	ErrProfileUnavailable = errors.New("profile unavailable")
	ErrGeneration         = errors.New("generation failed")
	ErrScrapeUnavailable  = errors.New("scrape unavailable")
	ErrTimeout            = errors.New("timeout")
	ErrRejected           = errors.New("rejected by operator")

	// ErrPermanent is joined with ErrGateway when the remote side answered but
	// refused the call, e.g. an auth failure or a tool reporting an error.
	ErrPermanent = errors.New("not retryable")
)

// IsTransient reports whether err is a gateway failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGateway) && !errors.Is(err, ErrPermanent)
}
