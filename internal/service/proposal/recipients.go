package proposal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
)

// AccountResolver looks up profiles with a short-lived cache in front of the
// account store. Misses are not cached.
type AccountResolver struct {
	accounts repository.AccountRepository
	cache    *cache.Cache
}

func NewAccountResolver(accounts repository.AccountRepository, ttl time.Duration) *AccountResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AccountResolver{
		accounts: accounts,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (r *AccountResolver) Resolve(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	key := id.String()
	if cached, ok := r.cache.Get(key); ok {
		account := cached.(model.Account)
		return &account, nil
	}

	account, err := r.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, *account, cache.DefaultExpiration)
	return account, nil
}

// Forget drops a cached profile.
func (r *AccountResolver) Forget(id uuid.UUID) {
	r.cache.Delete(id.String())
}
