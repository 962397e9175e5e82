package token

// Repo holds the single token of a session. Upsert replaces the held token
// wholesale; readers observe either the old token or the new one.
type Repo interface {
	Get() (*Token, error)
	Upsert(token *Token) error
	Delete() error
}
