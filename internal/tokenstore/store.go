// Package tokenstore persists the session token triple between client
// runs. Every backend writes the three fields together: a partially
// written triple must be impossible.
package tokenstore

// Storage keys for the token triple. Absence of the access token is the
// sole "not authenticated" signal at startup.
const (
	KeyAccessToken  = "auth_access_token"
	KeyRefreshToken = "auth_refresh_token"
	KeyTokenType    = "auth_token_type"
)

// Tokens is the persisted credential triple. Empty strings mean "no
// session".
type Tokens struct {
	AccessToken  string `json:"auth_access_token"`
	RefreshToken string `json:"auth_refresh_token"`
	TokenType    string `json:"auth_token_type"`
}

// IsZero reports whether no session is stored
func (t Tokens) IsZero() bool {
	return t.AccessToken == ""
}

// Store persists the token triple
type Store interface {
	// Save writes all three fields atomically. Called only after a
	// successful auth response.
	Save(t Tokens) error

	// Load reads the stored triple. A missing store yields the zero
	// Tokens, not an error.
	Load() (Tokens, error)

	// Clear removes the triple. Idempotent; called by logout.
	Clear() error
}
