package middleware

import "net/http"

// MaxBodyBytes is the maximum payload accepted on any endpoint.
const MaxBodyBytes = 250 * 1024 * 1024

// BodyLimit wraps the request body in http.MaxBytesReader so an
// oversized upload is rejected at read time rather than exhausting memory
// buffering it.
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
