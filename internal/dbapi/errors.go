package dbapi

import "errors"

// ErrUnauthorized is returned by SetScan when the upstream rejects the
// service's own bearer token with a 401, per the propagation policy: that
// specific status is not retryable within the call.
var ErrUnauthorized = errors.New("dbapi: upstream rejected bearer token")
