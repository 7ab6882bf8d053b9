// Package anchor runs the anchoring pipeline: canonicalize a passport, hash
// it, commit the hash through the registry, wait for confirmation, and write
// the resulting anchor triple back to the record. Jobs arrive through the
// durable queue and are safe to redeliver at any point in that sequence.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tracehub/internal/anchor/canonical"
	"tracehub/internal/anchor/metrics"
	"tracehub/internal/chain"
	"tracehub/internal/domain"
	"tracehub/internal/events"
	"tracehub/internal/queue"
	"tracehub/internal/registry"
	"tracehub/pkg/platform/sentinel"
)

var tracer = otel.Tracer("tracehub/anchor")

// RecordStore is the worker's view of passport persistence.
type RecordStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Passport, error)
	UpdateAnchor(ctx context.Context, id uuid.UUID, anchor domain.AnchorRef) error
}

// Outcome classifies how a job ended.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeAnchored
	OutcomeAlreadyAnchored
	OutcomeSkippedNotFound
	OutcomeSkippedDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnchored:
		return "anchored"
	case OutcomeAlreadyAnchored:
		return "already_anchored"
	case OutcomeSkippedNotFound:
		return "skipped_not_found"
	case OutcomeSkippedDisabled:
		return "skipped_disabled"
	default:
		return "failed"
	}
}

// Result is the tagged outcome of one job. Err and Retry are meaningful only
// when Outcome is OutcomeFailed; Anchor only for the two anchored outcomes.
type Result struct {
	Outcome Outcome
	Anchor  domain.AnchorRef
	Err     error
	Retry   bool
}

// Worker processes one anchor job at a time. A nil registry means anchoring
// is disabled: jobs are acknowledged without any network activity.
type Worker struct {
	store     RecordStore
	registry  chain.Registry
	confirmer chain.Confirmer
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	baseURL   string
	now       func() time.Time
}

type Option func(w *Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(w *Worker) {
		w.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithBaseURL sets the API base used for the metadata URI fallback when a
// record carries no digital link.
func WithBaseURL(url string) Option {
	return func(w *Worker) {
		w.baseURL = url
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// NewWorker constructs a Worker. registry and confirmer may both be nil to
// run with anchoring disabled; a registry without a confirmer is a wiring
// error.
func NewWorker(store RecordStore, reg chain.Registry, confirmer chain.Confirmer, opts ...Option) (*Worker, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if reg != nil && confirmer == nil {
		return nil, errors.New("confirmer is required when a registry is configured")
	}

	w := &Worker{
		store:     store,
		registry:  reg,
		confirmer: confirmer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Process runs the anchor state machine for one job. Every path re-reads
// current state first, so redelivered jobs converge instead of double
// registering.
func (w *Worker) Process(ctx context.Context, job queue.Job) Result {
	ctx, span := tracer.Start(ctx, "anchor.Process", trace.WithAttributes(
		attribute.String("passport.id", job.RecordID.String()),
		attribute.Int("job.attempt", job.Attempt),
	))
	defer span.End()

	rec, err := w.store.FindByID(ctx, job.RecordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			w.logger.Info("passport deleted before anchoring, skipping",
				"passportId", job.RecordID)
			return Result{Outcome: OutcomeSkippedNotFound}
		}
		return w.failure(span, fmt.Errorf("load passport: %w", err), true)
	}

	if rec.Anchored() {
		// Terminal: content writes clear the triple, so a complete one
		// means this delivery is a duplicate of finished work.
		return Result{Outcome: OutcomeAlreadyAnchored, Anchor: *rec.Anchor}
	}

	if w.registry == nil {
		w.logger.Warn("anchoring disabled, acknowledging job without submission",
			"passportId", job.RecordID)
		return Result{Outcome: OutcomeSkippedDisabled}
	}

	doc, err := canonical.Serialize(rec)
	if err != nil {
		// A record that cannot serialize cannot succeed until it is
		// edited, and editing re-enqueues. Retrying burns attempts.
		return w.failure(span, err, false)
	}
	hash := canonical.Hash(doc)
	key := canonical.PassportKey(rec.ID)

	existing, err := w.registry.Passport(ctx, key)
	if err != nil {
		return w.failure(span, fmt.Errorf("read registry: %w", err), true)
	}
	if existing != nil && existing.Hash == hash {
		return w.alreadyAnchored(ctx, rec, existing, hash)
	}

	var txID string
	if existing == nil {
		txID, err = w.registry.Register(ctx, key, hash, w.metadataURI(rec))
	} else {
		txID, err = w.registry.AmendHash(ctx, key, hash)
	}
	if err != nil {
		if errors.Is(err, registry.ErrPassportExists) || errors.Is(err, registry.ErrHashExists) {
			// Lost a submission race; the committed state decides.
			return w.reconcile(ctx, span, rec, key, hash)
		}
		return w.failure(span, err, true)
	}

	confirmStart := w.now()
	if err := w.confirmer.Wait(ctx, txID); err != nil {
		var cerr *chain.ConfirmationError
		if errors.As(err, &cerr) && cerr.Reverted {
			return w.reconcile(ctx, span, rec, key, hash)
		}
		// Timed out or interrupted. The tx may still land; the next
		// delivery re-reads the registry before submitting again.
		return w.failure(span, err, true)
	}
	w.metrics.ObserveConfirmLatency(w.now().Sub(confirmStart))

	anchor := domain.AnchorRef{
		TxID:       txID,
		Hash:       common.Hash(hash).Hex(),
		AnchoredAt: w.now().UTC(),
	}
	if err := w.store.UpdateAnchor(ctx, rec.ID, anchor); err != nil {
		return w.failure(span, fmt.Errorf("persist anchor: %w", err), true)
	}

	w.publish(ctx, rec, anchor)
	w.logger.Info("passport anchored",
		"passportId", rec.ID, "txId", txID, "attempt", job.Attempt)
	return Result{Outcome: OutcomeAnchored, Anchor: anchor}
}

// reconcile re-reads the registry after a rejected or reverted submission.
// If the committed hash matches ours someone else finished the work; any
// other state retries.
func (w *Worker) reconcile(ctx context.Context, span trace.Span, rec *domain.Passport, key, hash [32]byte) Result {
	existing, err := w.registry.Passport(ctx, key)
	if err != nil {
		return w.failure(span, fmt.Errorf("read registry: %w", err), true)
	}
	if existing != nil && existing.Hash == hash {
		return w.alreadyAnchored(ctx, rec, existing, hash)
	}
	return w.failure(span, fmt.Errorf("submission rejected for %s with registry state diverged", rec.ID), true)
}

// alreadyAnchored adopts a committed registration as this record's anchor.
// Without a recoverable tx id the triple stays unset; the registry remains
// the source of truth for verification either way.
func (w *Worker) alreadyAnchored(ctx context.Context, rec *domain.Passport, existing *chain.Record, hash [32]byte) Result {
	anchor := domain.AnchorRef{
		TxID:       existing.TxID,
		Hash:       common.Hash(hash).Hex(),
		AnchoredAt: w.now().UTC(),
	}
	if existing.TxID == "" {
		w.logger.Warn("hash already committed but no anchor tx recoverable",
			"passportId", rec.ID)
		return Result{Outcome: OutcomeAlreadyAnchored, Anchor: anchor}
	}
	if err := w.store.UpdateAnchor(ctx, rec.ID, anchor); err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("persist anchor: %w", err), Retry: true}
	}
	w.publish(ctx, rec, anchor)
	return Result{Outcome: OutcomeAlreadyAnchored, Anchor: anchor}
}

func (w *Worker) metadataURI(rec *domain.Passport) string {
	if rec.DigitalLinkURI != nil && *rec.DigitalLinkURI != "" {
		return *rec.DigitalLinkURI
	}
	if w.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/v1/passports/%s", w.baseURL, rec.ID)
}

func (w *Worker) publish(ctx context.Context, rec *domain.Passport, anchor domain.AnchorRef) {
	if w.publisher == nil {
		return
	}
	event := events.Event{
		Type:           events.TypeAnchored,
		PassportID:     rec.ID,
		OrganisationID: rec.OrganisationID,
		OccurredAt:     w.now().UTC(),
		Data:           map[string]string{"txId": anchor.TxID, "hash": anchor.Hash},
	}
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.logger.Warn("failed to publish anchored event",
			"passportId", rec.ID, "error", err)
	}
}

func (w *Worker) failure(span trace.Span, err error, retry bool) Result {
	span.RecordError(err)
	return Result{Outcome: OutcomeFailed, Err: err, Retry: retry}
}
