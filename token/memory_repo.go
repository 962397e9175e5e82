package token

import (
	"sync/atomic"

	"github.com/jrsteele09/go-flume-client/internal/errors"
)

// InMemoryRepo is the default Repo, backed by an atomic pointer.
type InMemoryRepo struct {
	current atomic.Pointer[Token]
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() Repo {
	return &InMemoryRepo{}
}

// Get returns a copy of the held token or ErrTokenNotPresent.
func (r *InMemoryRepo) Get() (*Token, error) {
	t := r.current.Load()
	if t == nil {
		return nil, errors.ErrTokenNotPresent
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryRepo) Upsert(token *Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.ErrInvalidToken
	}
	cp := *token
	r.current.Store(&cp)
	return nil
}

func (r *InMemoryRepo) Delete() error {
	r.current.Store(nil)
	return nil
}
