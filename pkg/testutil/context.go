package testutil

import (
	"net/http"
	"time"

	"keygate/pkg/requestcontext"
)

// WithTime pins the request clock so grant expiry assertions are exact. The
// request id middleware preserves an already-injected time.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
