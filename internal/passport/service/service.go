// Package service orchestrates passport CRUD, organisation scoping, and the
// handoff to the anchoring pipeline. Content writes clear the anchor triple
// and enqueue a fresh anchor job; the queue coalesces bursts per record.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tracehub/internal/anchor/canonical"
	"tracehub/internal/chain"
	"tracehub/internal/domain"
	"tracehub/internal/events"
	"tracehub/internal/passport/metrics"
	"tracehub/internal/passport/store"
	"tracehub/internal/queue"
	dErrors "tracehub/pkg/domain-errors"
	"tracehub/pkg/platform/sentinel"
)

// Input carries the writable passport fields for create and update.
type Input struct {
	ProductName         string             `json:"productName"`
	CategoryL1          string             `json:"categoryL1"`
	CategoryL2          *string            `json:"categoryL2"`
	GTIN                *string            `json:"gtin"`
	SerialNumber        *string            `json:"serialNumber"`
	DigitalLinkURI      *string            `json:"digitalLinkUri"`
	MaterialComposition []domain.Material  `json:"materialComposition"`
	Dimensions          *domain.Dimensions `json:"dimensions"`
	TechnicalSpecs      domain.TechSpecs   `json:"technicalSpecs"`
	ManufacturerName    *string            `json:"manufacturerName"`
	CountryOfOrigin     *string            `json:"countryOfOrigin"`
	ProductionDate      *time.Time         `json:"productionDate"`
	GWPTotal            *float64           `json:"gwpTotal"`
	EmbodiedCarbon      *float64           `json:"embodiedCarbon"`
	RecycledContent     *float64           `json:"recycledContent"`
	EPDReference        *string            `json:"epdReference"`
	CEMarking           bool               `json:"ceMarking"`
	ConditionGrade      *string            `json:"conditionGrade"`
	ConditionNotes      *string            `json:"conditionNotes"`
	DeconstructionDate  *time.Time         `json:"deconstructionDate"`
	DeconstructionMeth  *string            `json:"deconstructionMethod"`
	ReclaimedBy         *string            `json:"reclaimedBy"`
	RemainingLife       *int               `json:"remainingLifeEstimate"`
	CarbonSavingsVsNew  *float64           `json:"carbonSavingsVsNew"`
	HazardousSubstances []domain.Hazard    `json:"hazardousSubstances"`
	Status              string             `json:"status"`
}

// VerificationResult is the outcome of comparing current content against the
// registry.
type VerificationResult struct {
	PassportID uuid.UUID `json:"passportId"`
	Anchored   bool      `json:"anchored"`
	Verified   bool      `json:"verified"`
	Hash       string    `json:"hash"`
	TxID       string    `json:"txId,omitempty"`
}

// Service orchestrates passport operations.
type Service struct {
	store     store.Store
	queue     queue.Queue
	registry  chain.Registry
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRegistry enables the verification read path.
func WithRegistry(reg chain.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service.
func New(st store.Store, q queue.Queue, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if q == nil {
		return nil, errors.New("queue is required")
	}
	s := &Service{
		store:  st,
		queue:  q,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create makes a new passport for the organisation. Records created in a
// non-draft status are immediately scheduled for anchoring.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, in Input) (*domain.Passport, error) {
	if orgID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeForbidden, "organisation scope required")
	}

	status := domain.PassportStatus(in.Status)
	if in.Status == "" {
		status = domain.StatusDraft
	}
	if !domain.ValidStatus(status) {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status "+in.Status)
	}
	if status != domain.StatusDraft {
		if err := validateContent(in); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	p := &domain.Passport{
		ID:             uuid.New(),
		OrganisationID: orgID,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyInput(p, in)

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "passport already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create passport")
	}

	s.metrics.IncrementCreated(string(status))
	s.emit(ctx, events.TypeCreated, p, nil)

	if status != domain.StatusDraft {
		s.enqueueAnchor(ctx, p, "create")
	}
	return p, nil
}

// Get returns a passport. Drafts are visible only to their organisation;
// anything past draft is public.
func (s *Service) Get(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID) (*domain.Passport, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.StatusDraft && p.OrganisationID != callerOrg {
		// Hide existence of foreign drafts.
		return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
	}
	return p, nil
}

// List returns the caller organisation's passports.
func (s *Service) List(ctx context.Context, callerOrg uuid.UUID, f store.Filter) ([]*domain.Passport, int, error) {
	if callerOrg == uuid.Nil {
		return nil, 0, dErrors.New(dErrors.CodeForbidden, "organisation scope required")
	}
	f.OrganisationID = &callerOrg
	page, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list passports")
	}
	return page, total, nil
}

// Update replaces a passport's content, clears its anchor, and schedules
// re-anchoring for non-draft records.
func (s *Service) Update(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID, in Input) (*domain.Passport, error) {
	p, err := s.loadOwned(ctx, callerOrg, id)
	if err != nil {
		return nil, err
	}

	if in.Status != "" && in.Status != string(p.Status) {
		return nil, dErrors.New(dErrors.CodeValidation, "status changes use the status endpoint")
	}
	if p.Status != domain.StatusDraft {
		if err := validateContent(in); err != nil {
			return nil, err
		}
	}

	applyInput(p, in)
	p.ClearAnchor()
	p.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update passport")
	}

	s.emit(ctx, events.TypeUpdated, p, nil)
	s.emit(ctx, events.TypeAnchorCleared, p, nil)
	if p.Status != domain.StatusDraft {
		s.enqueueAnchor(ctx, p, "update")
	}
	return p, nil
}

// UpdateStatus moves a passport through its lifecycle. Leaving draft
// validates content and schedules the first anchoring.
func (s *Service) UpdateStatus(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID, status domain.PassportStatus) (*domain.Passport, error) {
	if !domain.ValidStatus(status) {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status "+string(status))
	}

	p, err := s.loadOwned(ctx, callerOrg, id)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}

	leavingDraft := p.Status == domain.StatusDraft
	if leavingDraft {
		if err := validatePassport(p); err != nil {
			return nil, err
		}
	}

	old := p.Status
	p.Status = status
	p.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update passport status")
	}

	s.emit(ctx, events.TypeStatusChanged, p, map[string]string{
		"oldStatus": string(old),
		"newStatus": string(status),
	})
	if leavingDraft {
		s.enqueueAnchor(ctx, p, "status_change")
	}
	return p, nil
}

// Verify recomputes the canonical hash and checks it against the registry.
func (s *Service) Verify(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID) (*VerificationResult, error) {
	p, err := s.Get(ctx, callerOrg, id)
	if err != nil {
		return nil, err
	}
	if s.registry == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "anchoring is not enabled")
	}

	doc, err := canonical.Serialize(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "passport cannot be canonicalized")
	}
	hash := canonical.Hash(doc)

	verified, err := s.registry.Verify(ctx, canonical.PassportKey(p.ID), hash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registry verification failed")
	}

	res := &VerificationResult{
		PassportID: p.ID,
		Anchored:   p.Anchored(),
		Verified:   verified,
		Hash:       common.Hash(hash).Hex(),
	}
	if p.Anchor != nil {
		res.TxID = p.Anchor.TxID
	}

	switch {
	case verified:
		s.metrics.IncrementVerification("verified")
	case p.Anchored():
		s.metrics.IncrementVerification("mismatch")
	default:
		s.metrics.IncrementVerification("unanchored")
	}
	return res, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Passport, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load passport")
	}
	return p, nil
}

func (s *Service) loadOwned(ctx context.Context, callerOrg uuid.UUID, id uuid.UUID) (*domain.Passport, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OrganisationID != callerOrg {
		if p.Status == domain.StatusDraft {
			return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return nil, dErrors.New(dErrors.CodeForbidden, "passport belongs to another organisation")
	}
	return p, nil
}

func (s *Service) enqueueAnchor(ctx context.Context, p *domain.Passport, trigger string) {
	job := queue.Job{RecordID: p.ID, OrganisationID: p.OrganisationID}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// The record is saved; anchoring catches up on the next write.
		s.logger.ErrorContext(ctx, "failed to enqueue anchor job",
			"passportId", p.ID, "trigger", trigger, "error", err)
		return
	}
	s.metrics.IncrementAnchorEnqueued(trigger)
}

func (s *Service) emit(ctx context.Context, eventType string, p *domain.Passport, data map[string]string) {
	if s.publisher == nil {
		return
	}
	event := events.Event{
		Type:           eventType,
		PassportID:     p.ID,
		OrganisationID: p.OrganisationID,
		OccurredAt:     s.now().UTC(),
		Data:           data,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish lifecycle event",
			"type", eventType, "passportId", p.ID, "error", err)
	}
}

func validateContent(in Input) error {
	switch {
	case in.ProductName == "":
		return dErrors.New(dErrors.CodeValidation, "productName is required")
	case in.CategoryL1 == "":
		return dErrors.New(dErrors.CodeValidation, "categoryL1 is required")
	}
	return validateComposition(in.MaterialComposition)
}

func validatePassport(p *domain.Passport) error {
	switch {
	case p.ProductName == "":
		return dErrors.New(dErrors.CodeValidation, "productName is required before activation")
	case p.CategoryL1 == "":
		return dErrors.New(dErrors.CodeValidation, "categoryL1 is required before activation")
	}
	return nil
}

func validateComposition(materials []domain.Material) error {
	for _, m := range materials {
		if m.Name == "" {
			return dErrors.New(dErrors.CodeValidation, "material entries need a name")
		}
		if m.Percentage != nil && (*m.Percentage < 0 || *m.Percentage > 100) {
			return dErrors.New(dErrors.CodeValidation, "material percentage out of range")
		}
	}
	return nil
}

func applyInput(p *domain.Passport, in Input) {
	p.ProductName = in.ProductName
	p.CategoryL1 = in.CategoryL1
	p.CategoryL2 = in.CategoryL2
	p.GTIN = in.GTIN
	p.SerialNumber = in.SerialNumber
	p.DigitalLinkURI = in.DigitalLinkURI
	p.MaterialComposition = in.MaterialComposition
	p.Dimensions = in.Dimensions
	p.TechnicalSpecs = in.TechnicalSpecs
	p.ManufacturerName = in.ManufacturerName
	p.CountryOfOrigin = in.CountryOfOrigin
	p.ProductionDate = in.ProductionDate
	p.GWPTotal = in.GWPTotal
	p.EmbodiedCarbon = in.EmbodiedCarbon
	p.RecycledContent = in.RecycledContent
	p.EPDReference = in.EPDReference
	p.CEMarking = in.CEMarking
	p.ConditionGrade = in.ConditionGrade
	p.ConditionNotes = in.ConditionNotes
	p.DeconstructionDate = in.DeconstructionDate
	p.DeconstructionMethod = in.DeconstructionMeth
	p.ReclaimedBy = in.ReclaimedBy
	p.RemainingLifeEstimate = in.RemainingLife
	p.CarbonSavingsVsNew = in.CarbonSavingsVsNew
	p.HazardousSubstances = in.HazardousSubstances
}
