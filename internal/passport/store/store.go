// Package store persists material passports. Both implementations return
// sentinel errors for infrastructure facts; services translate them into
// coded domain errors.
package store

import (
	"context"

	"github.com/google/uuid"

	"tracehub/internal/domain"
)

// Filter narrows List results. Nil and zero fields are ignored.
type Filter struct {
	OrganisationID *uuid.UUID
	Status         *domain.PassportStatus
	CategoryL1     string
	Limit          int
	Offset         int
}

// DefaultPageSize bounds unpaged List calls.
const DefaultPageSize = 50

// Store is the passport persistence contract.
type Store interface {
	// Create inserts a new passport. sentinel.ErrConflict if the id exists.
	Create(ctx context.Context, p *domain.Passport) error

	// FindByID returns the passport or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Passport, error)

	// List returns one page plus the total match count.
	List(ctx context.Context, f Filter) ([]*domain.Passport, int, error)

	// Update replaces the stored record. sentinel.ErrNotFound if absent.
	Update(ctx context.Context, p *domain.Passport) error

	// UpdateAnchor writes the anchor triple without touching content
	// fields, so a concurrent edit cannot be overwritten by the worker.
	UpdateAnchor(ctx context.Context, id uuid.UUID, anchor domain.AnchorRef) error
}
