package oauth2

// TokenResponse represents a single token grant result.
// Flume wraps it in an Envelope: {"data": [TokenResponse]}.
type TokenResponse struct {
	// AccessToken is the JWT used to access protected resources.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Note: Its payload carries the "user_id" claim needed for /users/{id} routes
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 604800 (one week)
	// Note: When absent the JWT's "exp" claim is used instead
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Usage: Send to the token endpoint with grant_type=refresh_token
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// Envelope is the response wrapper used by every Flume endpoint, including
// the token endpoint.
type Envelope[T any] struct {
	Success     bool        `json:"success"`
	Code        int         `json:"code"`
	Message     string      `json:"message"`
	HTTPCode    int         `json:"http_code"`
	HTTPMessage string      `json:"http_message"`
	Detailed    []string    `json:"detailed"`
	Count       int         `json:"count"`
	Data        []T         `json:"data"`
	Pagination  *Pagination `json:"pagination"`
}

// Pagination links returned by list endpoints. Next is nil on the last page.
type Pagination struct {
	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

// HasNext reports whether another page is available.
func (p *Pagination) HasNext() bool {
	return p != nil && p.Next != nil && *p.Next != ""
}
