package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired    = errors.New("user: id is required")
	ErrEmailRequired = errors.New("user: email is required")
	ErrNotFound      = errors.New("user: not found")
)

type ID string

// User mirrors the account record held by the external identity provider,
// extended with the privileged-role flag the admin gate depends on.
// Credentials never live here; authentication is the provider's job.
type User struct {
	ID        ID
	Email     string
	Name      string
	Admin     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateParams struct {
	ID        ID
	Email     string
	Name      string
	Admin     bool
	CreatedAt time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &User{
		ID:        ID(id),
		Email:     email,
		Name:      strings.TrimSpace(params.Name),
		Admin:     params.Admin,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) SetAdmin(admin bool, now time.Time) {
	u.Admin = admin
	if now.IsZero() {
		now = time.Now()
	}
	u.UpdatedAt = now.UTC()
}

type ListParams struct {
	Query  string
	Limit  int
	Offset int
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	Save(ctx context.Context, user *User) error
	List(ctx context.Context, params ListParams) ([]*User, int64, error)
}
