package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tracehub/internal/domain"
	"tracehub/pkg/platform/sentinel"
)

// InMemoryStore keeps passports in a map. Used in tests and when no postgres
// URL is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	passports map[uuid.UUID]*domain.Passport
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{passports: make(map[uuid.UUID]*domain.Passport)}
}

func (s *InMemoryStore) Create(_ context.Context, p *domain.Passport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.passports[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.passports[p.ID] = clone(p)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Passport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.passports[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemoryStore) List(_ context.Context, f Filter) ([]*domain.Passport, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Passport, 0, len(s.passports))
	for _, p := range s.passports {
		if f.OrganisationID != nil && p.OrganisationID != *f.OrganisationID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.CategoryL1 != "" && p.CategoryL1 != f.CategoryL1 {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := make([]*domain.Passport, 0, end-start)
	for _, p := range matched[start:end] {
		page = append(page, clone(p))
	}
	return page, total, nil
}

func (s *InMemoryStore) Update(_ context.Context, p *domain.Passport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passports[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.passports[p.ID] = clone(p)
	return nil
}

func (s *InMemoryStore) UpdateAnchor(_ context.Context, id uuid.UUID, anchor domain.AnchorRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passports[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	a := anchor
	p.Anchor = &a
	return nil
}

func clone(p *domain.Passport) *domain.Passport {
	cp := *p
	if p.Anchor != nil {
		a := *p.Anchor
		cp.Anchor = &a
	}
	cp.MaterialComposition = append([]domain.Material(nil), p.MaterialComposition...)
	cp.HazardousSubstances = append([]domain.Hazard(nil), p.HazardousSubstances...)
	cp.TechnicalSpecs = p.TechnicalSpecs.Clone()
	if p.Dimensions != nil {
		d := *p.Dimensions
		cp.Dimensions = &d
	}
	return &cp
}
