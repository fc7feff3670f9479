package memory

import (
	"context"
	"sync"

	"tradepost/internal/domain/fault"
	domainlisting "tradepost/internal/domain/listing"
)

// ListingRepository is an in-memory implementation for tests and dev fixtures.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlisting.ID]*domainlisting.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlisting.ID]*domainlisting.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "listing not found")
	}
	copied := *l
	return &copied, nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlisting.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *l
	r.items[l.ID] = &copied
	return nil
}

var _ domainlisting.Repository = (*ListingRepository)(nil)
