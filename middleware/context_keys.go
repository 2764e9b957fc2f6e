package middleware

// Keys set on the gin context by middleware and read by handlers and loggers.
const (
	// RequestIDKey holds the request ID (string).
	RequestIDKey = "request_id"
	// AuthSubjectKey holds the "sub" claim of a verified bearer token (string).
	AuthSubjectKey = "auth_subject"
)
