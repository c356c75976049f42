package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"

	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieSessionID = "session_id"
)
