package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tradepost/internal/domain/fault"
	domainuser "tradepost/internal/domain/user"
)

// UserRepository stores users in memory. Not suitable for production.
type UserRepository struct {
	mu   sync.RWMutex
	byID map[domainuser.ID]*domainuser.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[domainuser.ID]*domainuser.User)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, fault.New(fault.NotFound, "user not found")
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.byID[u.ID] = &copied
	return nil
}

func (r *UserRepository) List(ctx context.Context, params domainuser.ListParams) ([]*domainuser.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(params.Query))
	matched := make([]*domainuser.User, 0, len(r.byID))
	for _, u := range r.byID {
		if query != "" &&
			!strings.Contains(strings.ToLower(u.Email), query) &&
			!strings.Contains(strings.ToLower(u.Name), query) {
			continue
		}
		copied := *u
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	offset := params.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

var _ domainuser.Repository = (*UserRepository)(nil)
