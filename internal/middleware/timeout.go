package middleware

import (
	"net/http"
	"time"
)

// Timeout wraps handlers with an http.TimeoutHandler.
// This protects against slow-read attacks. The wrapper buffers the whole
// response, so a handler behind it cannot stream partial output.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"success":false,"error":"request timeout"}`)
	}
}
