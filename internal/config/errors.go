package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrNotAuthenticated  = "Not authenticated"
	ErrInvalidOAuthState = "Invalid state parameter"
	ErrTokenExchange     = "Failed to exchange code for token"

	// Generic API errors
	ErrInternalServerError = "Internal server error"
	ErrPostNotFoundFmt     = "Post with slug '%s' not found"
)
