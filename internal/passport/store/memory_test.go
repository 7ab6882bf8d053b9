package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracehub/internal/domain"
	"tracehub/pkg/platform/sentinel"
)

func newPassport(org uuid.UUID) *domain.Passport {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Passport{
		ID:             uuid.New(),
		OrganisationID: org,
		ProductName:    "Steel Beam IPE 200",
		CategoryL1:     "structural-steel",
		Status:         domain.StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestInMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	p := newPassport(uuid.New())

	require.NoError(t, s.Create(ctx, p))

	got, err := s.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ProductName, got.ProductName)
	assert.Nil(t, got.Anchor)

	assert.ErrorIs(t, s.Create(ctx, p), sentinel.ErrConflict)

	_, err = s.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	p := newPassport(uuid.New())
	p.TechnicalSpecs = domain.TechSpecs{"grade": "S355"}
	require.NoError(t, s.Create(ctx, p))

	got, err := s.FindByID(ctx, p.ID)
	require.NoError(t, err)
	got.ProductName = "mutated"
	got.TechnicalSpecs["grade"] = "mutated"

	again, err := s.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Steel Beam IPE 200", again.ProductName)
	assert.Equal(t, "S355", again.TechnicalSpecs["grade"])
}

func TestInMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	org := uuid.New()
	other := uuid.New()

	for i := 0; i < 3; i++ {
		p := newPassport(org)
		p.CreatedAt = p.CreatedAt.Add(time.Duration(i) * time.Minute)
		if i == 2 {
			p.Status = domain.StatusActive
		}
		require.NoError(t, s.Create(ctx, p))
	}
	require.NoError(t, s.Create(ctx, newPassport(other)))

	t.Run("org filter", func(t *testing.T) {
		page, total, err := s.List(ctx, Filter{OrganisationID: &org})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, page, 3)
	})

	t.Run("status filter", func(t *testing.T) {
		active := domain.StatusActive
		page, total, err := s.List(ctx, Filter{OrganisationID: &org, Status: &active})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, page, 1)
		assert.Equal(t, domain.StatusActive, page[0].Status)
	})

	t.Run("newest first with paging", func(t *testing.T) {
		page, total, err := s.List(ctx, Filter{OrganisationID: &org, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 2)
		assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

		rest, _, err := s.List(ctx, Filter{OrganisationID: &org, Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})
}

func TestInMemoryStoreUpdateAnchor(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	p := newPassport(uuid.New())
	require.NoError(t, s.Create(ctx, p))

	anchor := domain.AnchorRef{
		TxID:       "0xf00",
		Hash:       "0xba5e",
		AnchoredAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpdateAnchor(ctx, p.ID, anchor))

	got, err := s.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Anchor)
	assert.Equal(t, anchor, *got.Anchor)

	assert.ErrorIs(t, s.UpdateAnchor(ctx, uuid.New(), anchor), sentinel.ErrNotFound)
}
