package fetcher

import (
	"context"
	"errors"
	"time"

	"cyclescan/internal/cycle"
)

// ErrDataUnavailable means the provider has no usable history for an instrument.
// Network, auth and empty responses all surface as this error (wrapped).
var ErrDataUnavailable = errors.New("data not available")

// SeriesProvider retrieves daily closes for one instrument lookup token.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, token string, from, to time.Time) (cycle.Series, error)
}

// Session is the externally owned brokerage session shared by every fetch.
// Establishing it (login, TOTP) happens outside this package.
type Session struct {
	APIKey     string
	ClientCode string
	JWTToken   string
}

// Valid reports whether the session carries enough to authenticate requests.
func (s *Session) Valid() bool {
	return s != nil && s.APIKey != "" && s.JWTToken != ""
}
