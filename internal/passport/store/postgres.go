package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tracehub/internal/domain"
	"tracehub/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// PostgresStore persists passports in PostgreSQL. Frequently filtered fields
// live in columns; everything else travels in a jsonb attributes document.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed passport store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the passports schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply passports schema: %w", err)
	}
	return nil
}

// attributes is the jsonb column payload: everything the service does not
// filter on.
type attributes struct {
	GTIN                  *string            `json:"gtin,omitempty"`
	SerialNumber          *string            `json:"serialNumber,omitempty"`
	DigitalLinkURI        *string            `json:"digitalLinkUri,omitempty"`
	CategoryL2            *string            `json:"categoryL2,omitempty"`
	MaterialComposition   []domain.Material  `json:"materialComposition,omitempty"`
	Dimensions            *domain.Dimensions `json:"dimensions,omitempty"`
	TechnicalSpecs        domain.TechSpecs   `json:"technicalSpecs,omitempty"`
	ManufacturerName      *string            `json:"manufacturerName,omitempty"`
	CountryOfOrigin       *string            `json:"countryOfOrigin,omitempty"`
	ProductionDate        *time.Time         `json:"productionDate,omitempty"`
	GWPTotal              *float64           `json:"gwpTotal,omitempty"`
	EmbodiedCarbon        *float64           `json:"embodiedCarbon,omitempty"`
	RecycledContent       *float64           `json:"recycledContent,omitempty"`
	EPDReference          *string            `json:"epdReference,omitempty"`
	CEMarking             bool               `json:"ceMarking"`
	ConditionGrade        *string            `json:"conditionGrade,omitempty"`
	ConditionNotes        *string            `json:"conditionNotes,omitempty"`
	DeconstructionDate    *time.Time         `json:"deconstructionDate,omitempty"`
	DeconstructionMethod  *string            `json:"deconstructionMethod,omitempty"`
	ReclaimedBy           *string            `json:"reclaimedBy,omitempty"`
	RemainingLifeEstimate *int               `json:"remainingLifeEstimate,omitempty"`
	CarbonSavingsVsNew    *float64           `json:"carbonSavingsVsNew,omitempty"`
	HazardousSubstances   []domain.Hazard    `json:"hazardousSubstances,omitempty"`
}

func packAttributes(p *domain.Passport) ([]byte, error) {
	attrs := attributes{
		GTIN:                  p.GTIN,
		SerialNumber:          p.SerialNumber,
		DigitalLinkURI:        p.DigitalLinkURI,
		CategoryL2:            p.CategoryL2,
		MaterialComposition:   p.MaterialComposition,
		Dimensions:            p.Dimensions,
		TechnicalSpecs:        p.TechnicalSpecs,
		ManufacturerName:      p.ManufacturerName,
		CountryOfOrigin:       p.CountryOfOrigin,
		ProductionDate:        p.ProductionDate,
		GWPTotal:              p.GWPTotal,
		EmbodiedCarbon:        p.EmbodiedCarbon,
		RecycledContent:       p.RecycledContent,
		EPDReference:          p.EPDReference,
		CEMarking:             p.CEMarking,
		ConditionGrade:        p.ConditionGrade,
		ConditionNotes:        p.ConditionNotes,
		DeconstructionDate:    p.DeconstructionDate,
		DeconstructionMethod:  p.DeconstructionMethod,
		ReclaimedBy:           p.ReclaimedBy,
		RemainingLifeEstimate: p.RemainingLifeEstimate,
		CarbonSavingsVsNew:    p.CarbonSavingsVsNew,
		HazardousSubstances:   p.HazardousSubstances,
	}
	out, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal passport attributes: %w", err)
	}
	return out, nil
}

func unpackAttributes(raw []byte, p *domain.Passport) error {
	var attrs attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return fmt.Errorf("unmarshal passport attributes: %w", err)
	}
	p.GTIN = attrs.GTIN
	p.SerialNumber = attrs.SerialNumber
	p.DigitalLinkURI = attrs.DigitalLinkURI
	p.CategoryL2 = attrs.CategoryL2
	p.MaterialComposition = attrs.MaterialComposition
	p.Dimensions = attrs.Dimensions
	p.TechnicalSpecs = attrs.TechnicalSpecs
	p.ManufacturerName = attrs.ManufacturerName
	p.CountryOfOrigin = attrs.CountryOfOrigin
	p.ProductionDate = attrs.ProductionDate
	p.GWPTotal = attrs.GWPTotal
	p.EmbodiedCarbon = attrs.EmbodiedCarbon
	p.RecycledContent = attrs.RecycledContent
	p.EPDReference = attrs.EPDReference
	p.CEMarking = attrs.CEMarking
	p.ConditionGrade = attrs.ConditionGrade
	p.ConditionNotes = attrs.ConditionNotes
	p.DeconstructionDate = attrs.DeconstructionDate
	p.DeconstructionMethod = attrs.DeconstructionMethod
	p.ReclaimedBy = attrs.ReclaimedBy
	p.RemainingLifeEstimate = attrs.RemainingLifeEstimate
	p.CarbonSavingsVsNew = attrs.CarbonSavingsVsNew
	p.HazardousSubstances = attrs.HazardousSubstances
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, p *domain.Passport) error {
	attrs, err := packAttributes(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO passports (
			id, organisation_id, product_name, category_l1, status,
			attributes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.OrganisationID, p.ProductName, p.CategoryL1, string(p.Status),
		attrs, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert passport: %w", err)
	}
	return nil
}

const passportColumns = `
	id, organisation_id, product_name, category_l1, status,
	attributes, anchor_tx_id, anchor_hash, anchored_at, created_at, updated_at
`

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Passport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+passportColumns+` FROM passports WHERE id = $1`, id)
	p, err := scanPassport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find passport by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*domain.Passport, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.OrganisationID != nil {
		where = append(where, "organisation_id = "+arg(*f.OrganisationID))
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(string(*f.Status)))
	}
	if f.CategoryL1 != "" {
		where = append(where, "category_l1 = "+arg(f.CategoryL1))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM passports"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count passports: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	query := "SELECT " + passportColumns + " FROM passports" + clause +
		" ORDER BY created_at DESC, id LIMIT " + arg(limit) + " OFFSET " + arg(f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list passports: %w", err)
	}
	defer rows.Close()

	var out []*domain.Passport
	for rows.Next() {
		p, err := scanPassport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan passport: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list passports: %w", err)
	}
	return out, total, nil
}

func (s *PostgresStore) Update(ctx context.Context, p *domain.Passport) error {
	attrs, err := packAttributes(p)
	if err != nil {
		return err
	}

	var txID, hash sql.NullString
	var anchoredAt sql.NullTime
	if p.Anchor != nil {
		txID = sql.NullString{String: p.Anchor.TxID, Valid: true}
		hash = sql.NullString{String: p.Anchor.Hash, Valid: true}
		anchoredAt = sql.NullTime{Time: p.Anchor.AnchoredAt, Valid: true}
	}

	query := `
		UPDATE passports SET
			product_name = $2, category_l1 = $3, status = $4, attributes = $5,
			anchor_tx_id = $6, anchor_hash = $7, anchored_at = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		p.ID, p.ProductName, p.CategoryL1, string(p.Status), attrs,
		txID, hash, anchoredAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update passport: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update passport: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAnchor(ctx context.Context, id uuid.UUID, anchor domain.AnchorRef) error {
	query := `
		UPDATE passports SET anchor_tx_id = $2, anchor_hash = $3, anchored_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, anchor.TxID, anchor.Hash, anchor.AnchoredAt)
	if err != nil {
		return fmt.Errorf("update passport anchor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update passport anchor: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassport(row rowScanner) (*domain.Passport, error) {
	var (
		p          domain.Passport
		status     string
		attrs      []byte
		txID, hash sql.NullString
		anchoredAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.OrganisationID, &p.ProductName, &p.CategoryL1, &status,
		&attrs, &txID, &hash, &anchoredAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PassportStatus(status)
	if err := unpackAttributes(attrs, &p); err != nil {
		return nil, err
	}
	if txID.Valid {
		p.Anchor = &domain.AnchorRef{
			TxID:       txID.String,
			Hash:       hash.String,
			AnchoredAt: anchoredAt.Time,
		}
	}
	return &p, nil
}
