package cache

import "context"

// TokenStore persists the remote access token under KeyAuthToken so a
// signed-in user survives a restart. It satisfies the remote adapter's
// token persistence contract.
type TokenStore struct {
	c Cache
}

func NewTokenStore(c Cache) *TokenStore {
	return &TokenStore{c: c}
}

func (t *TokenStore) Load(ctx context.Context) (string, error) {
	return t.c.Get(ctx, KeyAuthToken)
}

func (t *TokenStore) Save(ctx context.Context, token string) error {
	return t.c.Set(ctx, KeyAuthToken, token)
}

func (t *TokenStore) Clear(ctx context.Context) error {
	return t.c.Remove(ctx, KeyAuthToken)
}
