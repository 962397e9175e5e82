package oauth2

// GrantType represents the OAuth 2.0 grant type sent to the token endpoint.
// Determines what credentials accompany the token request.
type GrantType string

const (
	// PasswordGrant exchanges the account username and password, together with
	// the API client id and secret, for tokens.
	// Used in: Initial authentication and re-login after a rejected refresh
	// Token request includes: client_id, client_secret, username, password
	// Returns: access_token, refresh_token, expires_in
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Used in: Token refresh flow (new access token without resending the password)
	// Token request includes: refresh_token, client_id, client_secret
	// Returns: new access_token and, usually, a rotated refresh_token
	RefreshTokenGrant GrantType = "refresh_token"
)

// BearerTokenType is the only token type the Flume API issues.
const BearerTokenType = "bearer"
