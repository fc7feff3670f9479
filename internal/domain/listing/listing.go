package listing

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired     = errors.New("listing: id is required")
	ErrSellerRequired = errors.New("listing: seller id is required")
	ErrTitleRequired  = errors.New("listing: title is required")
)

type ID string

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Listing carries the slice of a classified ad the messaging and geo
// components need; the full ad document lives with the catalog service.
type Listing struct {
	ID         ID
	SellerID   string
	Title      string
	Status     Status
	PriceCents int64
	City       string
	Lat        float64
	Lon        float64
	CreatedAt  time.Time
}

type CreateParams struct {
	ID         ID
	SellerID   string
	Title      string
	PriceCents int64
	City       string
	Lat        float64
	Lon        float64
	Now        time.Time
}

func New(params CreateParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.SellerID) == "" {
		return nil, ErrSellerRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Listing{
		ID:         params.ID,
		SellerID:   params.SellerID,
		Title:      strings.TrimSpace(params.Title),
		Status:     StatusActive,
		PriceCents: params.PriceCents,
		City:       params.City,
		Lat:        params.Lat,
		Lon:        params.Lon,
		CreatedAt:  now.UTC(),
	}, nil
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Listing, error)
	Save(ctx context.Context, l *Listing) error
}
