// Package canonical produces the deterministic byte form of a passport that
// is hashed and committed on-chain. Two snapshots with identical field values
// must always serialize to identical bytes, so the document layout below is
// append-only and every optional field is emitted as an explicit null.
package canonical

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"tracehub/internal/domain"
)

// ContextV1 versions the canonical form. Changing the document layout requires
// a new context entry so legacy hashes stay distinguishable.
const ContextV1 = "https://trace.construction/context/v1"

var contexts = []string{
	"https://schema.org/",
	"https://w3id.org/dpp/v1",
	ContextV1,
}

// SerializationError reports a record that cannot be canonicalized. It marks
// upstream data corruption and must not be retried.
type SerializationError struct {
	RecordID string
	Reason   string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("canonical serialization of %s failed: %s", e.RecordID, e.Reason)
}

// document is the JSON-LD projection of a passport. Field values come straight
// from the record; pointer fields marshal to null when absent.
type document struct {
	Context             []string           `json:"@context"`
	Type                string             `json:"@type"`
	LDID                string             `json:"@id"`
	ID                  string             `json:"id"`
	OrganisationID      string             `json:"organisationId"`
	ProductName         string             `json:"productName"`
	CategoryL1          string             `json:"categoryL1"`
	CategoryL2          *string            `json:"categoryL2"`
	GTIN                *string            `json:"gtin"`
	SerialNumber        *string            `json:"serialNumber"`
	MaterialComposition []domain.Material  `json:"materialComposition"`
	Dimensions          *domain.Dimensions `json:"dimensions"`
	TechnicalSpecs      domain.TechSpecs   `json:"technicalSpecs"`
	ManufacturerName    *string            `json:"manufacturerName"`
	CountryOfOrigin     *string            `json:"countryOfOrigin"`
	ProductionDate      *string            `json:"productionDate"`
	GWPTotal            *float64           `json:"gwpTotal"`
	EmbodiedCarbon      *float64           `json:"embodiedCarbon"`
	RecycledContent     *float64           `json:"recycledContent"`
	EPDReference        *string            `json:"epdReference"`
	CEMarking           bool               `json:"ceMarking"`
	ConditionGrade      *string            `json:"conditionGrade"`
	ConditionNotes      *string            `json:"conditionNotes"`
	DeconstructionDate  *string            `json:"deconstructionDate"`
	DeconstructionMeth  *string            `json:"deconstructionMethod"`
	ReclaimedBy         *string            `json:"reclaimedBy"`
	RemainingLife       *int               `json:"remainingLifeEstimate"`
	CarbonSavingsVsNew  *float64           `json:"carbonSavingsVsNew"`
	HazardousSubstances []domain.Hazard    `json:"hazardousSubstances"`
	Status              string             `json:"status"`
	CreatedAt           string             `json:"createdAt"`
}

// Serialize renders the passport's canonical bytes: the JSON-LD document above
// passed through RFC 8785 (JCS) so member order and number formatting are fixed.
func Serialize(p *domain.Passport) ([]byte, error) {
	if p == nil {
		return nil, &SerializationError{Reason: "nil record"}
	}
	if err := checkRequired(p); err != nil {
		return nil, err
	}

	doc := document{
		Context:             contexts,
		Type:                "MaterialPassport",
		LDID:                "https://trace.construction/passport/" + p.ID.String(),
		ID:                  p.ID.String(),
		OrganisationID:      p.OrganisationID.String(),
		ProductName:         p.ProductName,
		CategoryL1:          p.CategoryL1,
		CategoryL2:          p.CategoryL2,
		GTIN:                p.GTIN,
		SerialNumber:        p.SerialNumber,
		MaterialComposition: emptyIfNilMaterials(p.MaterialComposition),
		Dimensions:          p.Dimensions,
		TechnicalSpecs:      emptyIfNilSpecs(p.TechnicalSpecs),
		ManufacturerName:    p.ManufacturerName,
		CountryOfOrigin:     p.CountryOfOrigin,
		ProductionDate:      formatDate(p.ProductionDate),
		GWPTotal:            p.GWPTotal,
		EmbodiedCarbon:      p.EmbodiedCarbon,
		RecycledContent:     p.RecycledContent,
		EPDReference:        p.EPDReference,
		CEMarking:           p.CEMarking,
		ConditionGrade:      p.ConditionGrade,
		ConditionNotes:      p.ConditionNotes,
		DeconstructionDate:  formatDate(p.DeconstructionDate),
		DeconstructionMeth:  p.DeconstructionMethod,
		ReclaimedBy:         p.ReclaimedBy,
		RemainingLife:       p.RemainingLifeEstimate,
		CarbonSavingsVsNew:  p.CarbonSavingsVsNew,
		HazardousSubstances: emptyIfNilHazards(p.HazardousSubstances),
		Status:              string(p.Status),
		CreatedAt:           p.CreatedAt.UTC().Format(time.RFC3339),
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &SerializationError{RecordID: p.ID.String(), Reason: err.Error()}
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, &SerializationError{RecordID: p.ID.String(), Reason: err.Error()}
	}
	return out, nil
}

// checkRequired rejects records that lost required fields after leaving draft.
func checkRequired(p *domain.Passport) error {
	if p.ID == uuid.Nil {
		return &SerializationError{RecordID: p.ID.String(), Reason: "missing record id"}
	}
	if p.Status == domain.StatusDraft {
		return nil
	}
	switch {
	case p.ProductName == "":
		return &SerializationError{RecordID: p.ID.String(), Reason: "missing productName"}
	case p.CategoryL1 == "":
		return &SerializationError{RecordID: p.ID.String(), Reason: "missing categoryL1"}
	case p.OrganisationID == uuid.Nil:
		return &SerializationError{RecordID: p.ID.String(), Reason: "missing organisationId"}
	case p.CreatedAt.IsZero():
		return &SerializationError{RecordID: p.ID.String(), Reason: "missing createdAt"}
	}
	return nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func emptyIfNilMaterials(m []domain.Material) []domain.Material {
	if m == nil {
		return []domain.Material{}
	}
	return m
}

func emptyIfNilHazards(h []domain.Hazard) []domain.Hazard {
	if h == nil {
		return []domain.Hazard{}
	}
	return h
}

func emptyIfNilSpecs(ts domain.TechSpecs) domain.TechSpecs {
	if ts == nil {
		return domain.TechSpecs{}
	}
	return ts
}
