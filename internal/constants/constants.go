package constants

import "time"

// Context keys set by the authentication middleware
const (
	ContextKeyUserID    = "user_id"
	ContextKeyRole      = "user_role"
	ContextKeyTokenID   = "token_id"
	ContextKeyRequestID = "request_id"
)

// Token transport
const (
	TokenCookieName   = "token"
	RequestIDHeader   = "X-Request-ID"
	AuthHeaderPrefix  = "Bearer "
	DefaultTokenTTL   = 7 * 24 * time.Hour
	PasswordResetTTL  = time.Hour
	MinPasswordLength = 8
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Limits
const (
	MaxTitleLength       = 200
	MaxRequirements      = 20
	MaxProofPhotos       = 10
	MaxAIDraftInputChars = 4000
)
