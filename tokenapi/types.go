package tokenapi

// LoginRequest is the body of POST token/.
type LoginRequest struct {
	// PhoneNumber identifies the dashboard user.
	// Example: "0712345678"
	PhoneNumber string `json:"phone_number"`

	// Password is the user's secret. Never logged.
	Password string `json:"password"`
}

// TokenPair is returned by POST token/.
type TokenPair struct {
	// Access is the JWT presented as "Authorization: Bearer <access>".
	// Lifespan: Short-lived (typically 5-60 minutes), expiry is in the "exp" claim.
	Access string `json:"access"`

	// Refresh is used only against token/refresh/.
	// Lifespan: Long-lived (typically days)
	Refresh string `json:"refresh"`
}

// RefreshRequest is the body of POST token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by POST token/refresh/.
type RefreshResponse struct {
	// Access is the renewed access token.
	Access string `json:"access"`

	// Refresh is only present when the server rotates refresh tokens.
	// An empty value means the current refresh token stays valid.
	Refresh string `json:"refresh,omitempty"`
}

// VerifyRequest is the body of POST token/verify/.
type VerifyRequest struct {
	Token string `json:"token"`
}

// ErrorResponse is the error body returned by the token endpoints.
// Example: {"detail": "Token is invalid or expired", "code": "token_not_valid"}
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}
