package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tracehub/internal/anchor/canonical"
	"tracehub/internal/domain"
	"tracehub/internal/events"
	"tracehub/internal/passport/store"
	"tracehub/internal/queue"
	"tracehub/internal/registry"
	dErrors "tracehub/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store     *store.InMemoryStore
	queue     *queue.Memory
	publisher *events.Memory
	backend   *registry.Backend
	service   *Service
	org       uuid.UUID
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.queue = queue.NewMemory(queue.Policy{
		MaxAttempts:        3,
		BaseBackoff:        time.Millisecond,
		CompletedRetention: 10,
		DeadRetention:      10,
	})
	s.T().Cleanup(s.queue.Stop)
	s.publisher = events.NewMemory()
	s.org = uuid.New()
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	hub := common.HexToAddress("0x00000000000000000000000000000000000000C3")
	contract, err := registry.New(hub)
	s.Require().NoError(err)
	s.Require().NoError(contract.GrantHubRole(hub, hub))
	s.backend = registry.NewBackend(contract, hub)

	s.service, err = New(s.store, s.queue,
		WithPublisher(s.publisher),
		WithRegistry(s.backend),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) input() Input {
	return Input{
		ProductName: "Precast Concrete Column",
		CategoryL1:  "concrete",
		CEMarking:   true,
	}
}

// pendingJobs drains and acknowledges everything currently queued.
func (s *ServiceSuite) pendingJobs() []queue.Job {
	var jobs []queue.Job
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		job, err := s.queue.Dequeue(ctx)
		cancel()
		if err != nil {
			return jobs
		}
		s.Require().NoError(s.queue.Complete(context.Background(), job))
		jobs = append(jobs, job)
	}
}

func (s *ServiceSuite) eventTypes() []string {
	var types []string
	for _, e := range s.publisher.Events() {
		types = append(types, e.Type)
	}
	return types
}

// =============================================================================
// Create
// =============================================================================

func (s *ServiceSuite) TestCreateDraft() {
	in := s.input()
	in.Status = "draft"

	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	s.Equal(domain.StatusDraft, p.Status)
	s.Equal(s.org, p.OrganisationID)
	s.Equal(s.now, p.CreatedAt)
	s.Nil(p.Anchor)

	s.Empty(s.pendingJobs(), "drafts are not anchored")
	s.Equal([]string{events.TypeCreated}, s.eventTypes())
}

func (s *ServiceSuite) TestCreateActiveEnqueuesAnchor() {
	in := s.input()
	in.Status = "active"

	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)
	s.Equal(domain.StatusActive, p.Status)

	jobs := s.pendingJobs()
	s.Require().Len(jobs, 1)
	s.Equal(p.ID, jobs[0].RecordID)
	s.Equal(s.org, jobs[0].OrganisationID)
}

func (s *ServiceSuite) TestCreateDefaultsToDraft() {
	p, err := s.service.Create(context.Background(), s.org, s.input())
	s.Require().NoError(err)
	s.Equal(domain.StatusDraft, p.Status)
}

func (s *ServiceSuite) TestCreateValidation() {
	s.Run("unknown status", func() {
		in := s.input()
		in.Status = "recycled"
		_, err := s.service.Create(context.Background(), s.org, in)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("active without product name", func() {
		in := s.input()
		in.Status = "active"
		in.ProductName = ""
		_, err := s.service.Create(context.Background(), s.org, in)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("material percentage out of range", func() {
		in := s.input()
		in.Status = "active"
		pct := 140.0
		in.MaterialComposition = []domain.Material{{Name: "cement", Percentage: &pct}}
		_, err := s.service.Create(context.Background(), s.org, in)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing organisation", func() {
		_, err := s.service.Create(context.Background(), uuid.Nil, s.input())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// Get / List visibility
// =============================================================================

func (s *ServiceSuite) TestGetDraftPrivacy() {
	in := s.input()
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	_, err = s.service.Get(context.Background(), s.org, p.ID)
	s.NoError(err)

	_, err = s.service.Get(context.Background(), uuid.New(), p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "foreign drafts look absent")
}

func (s *ServiceSuite) TestGetActiveIsPublic() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	got, err := s.service.Get(context.Background(), uuid.Nil, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
}

func (s *ServiceSuite) TestListScopedToCaller() {
	_, err := s.service.Create(context.Background(), s.org, s.input())
	s.Require().NoError(err)
	_, err = s.service.Create(context.Background(), uuid.New(), s.input())
	s.Require().NoError(err)

	page, total, err := s.service.List(context.Background(), s.org, store.Filter{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(page, 1)
	s.Equal(s.org, page[0].OrganisationID)

	_, _, err = s.service.List(context.Background(), uuid.Nil, store.Filter{})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

// =============================================================================
// Update
// =============================================================================

func (s *ServiceSuite) TestUpdateClearsAnchorAndReenqueues() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)
	s.pendingJobs() // drain the create job

	anchor := domain.AnchorRef{TxID: "0xaa", Hash: "0xbb", AnchoredAt: s.now}
	s.Require().NoError(s.store.UpdateAnchor(context.Background(), p.ID, anchor))

	in.ProductName = "Precast Concrete Column C50"
	updated, err := s.service.Update(context.Background(), s.org, p.ID, in)
	s.Require().NoError(err)

	s.Nil(updated.Anchor, "content change invalidates the anchor")
	jobs := s.pendingJobs()
	s.Require().Len(jobs, 1)
	s.Equal(p.ID, jobs[0].RecordID)
	s.Contains(s.eventTypes(), events.TypeAnchorCleared)
}

func (s *ServiceSuite) TestUpdateForeignPassport() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	_, err = s.service.Update(context.Background(), uuid.New(), p.ID, in)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestUpdateRejectsStatusChange() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	in.Status = "sold"
	_, err = s.service.Update(context.Background(), s.org, p.ID, in)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// =============================================================================
// Status transitions
// =============================================================================

func (s *ServiceSuite) TestActivationEnqueuesFirstAnchor() {
	p, err := s.service.Create(context.Background(), s.org, s.input())
	s.Require().NoError(err)
	s.Empty(s.pendingJobs())

	updated, err := s.service.UpdateStatus(context.Background(), s.org, p.ID, domain.StatusActive)
	s.Require().NoError(err)
	s.Equal(domain.StatusActive, updated.Status)

	jobs := s.pendingJobs()
	s.Require().Len(jobs, 1)
	s.Equal(p.ID, jobs[0].RecordID)
	s.Contains(s.eventTypes(), events.TypeStatusChanged)
}

func (s *ServiceSuite) TestActivationValidatesContent() {
	in := Input{Status: "draft"}
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	_, err = s.service.UpdateStatus(context.Background(), s.org, p.ID, domain.StatusActive)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestStatusChangeBetweenNonDraftStates() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)
	s.pendingJobs()

	updated, err := s.service.UpdateStatus(context.Background(), s.org, p.ID, domain.StatusSold)
	s.Require().NoError(err)
	s.Equal(domain.StatusSold, updated.Status)
	s.Empty(s.pendingJobs(), "status-only changes do not re-anchor")
}

// =============================================================================
// Verify
// =============================================================================

func (s *ServiceSuite) TestVerifyAnchoredPassport() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	stored, err := s.store.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	doc, err := canonical.Serialize(stored)
	s.Require().NoError(err)
	hash := canonical.Hash(doc)

	txID, err := s.backend.Register(context.Background(), canonical.PassportKey(p.ID), hash, "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateAnchor(context.Background(), p.ID, domain.AnchorRef{
		TxID: txID, Hash: common.Hash(hash).Hex(), AnchoredAt: s.now,
	}))

	res, err := s.service.Verify(context.Background(), uuid.Nil, p.ID)
	s.Require().NoError(err)
	s.True(res.Anchored)
	s.True(res.Verified)
	s.Equal(txID, res.TxID)
	s.Equal(common.Hash(hash).Hex(), res.Hash)
}

func (s *ServiceSuite) TestVerifyDetectsDrift() {
	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	stored, err := s.store.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	doc, err := canonical.Serialize(stored)
	s.Require().NoError(err)
	_, err = s.backend.Register(context.Background(), canonical.PassportKey(p.ID), canonical.Hash(doc), "")
	s.Require().NoError(err)

	// Content drifts after anchoring.
	notes := "rebar exposure at base"
	stored.ConditionNotes = &notes
	s.Require().NoError(s.store.Update(context.Background(), stored))

	res, err := s.service.Verify(context.Background(), uuid.Nil, p.ID)
	s.Require().NoError(err)
	s.False(res.Verified, "current content no longer matches the committed hash")
}

func (s *ServiceSuite) TestVerifyWithoutRegistry() {
	svc, err := New(s.store, s.queue)
	s.Require().NoError(err)

	in := s.input()
	in.Status = "active"
	p, err := s.service.Create(context.Background(), s.org, in)
	s.Require().NoError(err)

	_, err = svc.Verify(context.Background(), uuid.Nil, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
