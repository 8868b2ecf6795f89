package testutil

import (
	"net/http"
	"time"

	"trustline/pkg/domain"
	"trustline/pkg/requestcontext"
)

// ActingAs stamps the request context with an authenticated acting address,
// the same way the auth middleware does after validating a token.
func ActingAs(req *http.Request, addr domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithActingAs(req.Context(), addr))
}

// AtTime pins the request-scoped clock so time predicates evaluate against a
// known instant.
func AtTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
