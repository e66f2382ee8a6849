package authcore

import (
	"errors"

	"github.com/pgclosets/authcore/csrf"
	"github.com/pgclosets/authcore/ratelimit"
	"github.com/pgclosets/authcore/session"
	"github.com/pgclosets/authcore/token"
)

// ErrRateLimited is returned by Admit when the request exceeds its policy.
var ErrRateLimited = errors.New("rate limited")

// Subpackage sentinels, re-exported so callers can match admission errors
// without importing every subpackage.
var (
	ErrTokenInvalid       = token.ErrTokenInvalid
	ErrUnauthenticated    = session.ErrUnauthenticated
	ErrForbidden          = session.ErrForbidden
	ErrCSRFMismatch       = csrf.ErrMismatch
	ErrBackendUnavailable = ratelimit.ErrBackendUnavailable
)
