package domain

import (
	"time"

	"github.com/google/uuid"
)

// PassportStatus is the off-chain lifecycle state of a material passport.
type PassportStatus string

const (
	StatusDraft          PassportStatus = "draft"
	StatusActive         PassportStatus = "active"
	StatusListed         PassportStatus = "listed"
	StatusReserved       PassportStatus = "reserved"
	StatusSold           PassportStatus = "sold"
	StatusInstalled      PassportStatus = "installed"
	StatusDecommissioned PassportStatus = "decommissioned"
)

// ValidStatus reports whether s is one of the enumerated passport statuses.
func ValidStatus(s PassportStatus) bool {
	switch s {
	case StatusDraft, StatusActive, StatusListed, StatusReserved,
		StatusSold, StatusInstalled, StatusDecommissioned:
		return true
	}
	return false
}

// Material is one entry of a passport's material composition.
type Material struct {
	Name       string   `json:"material"`
	Percentage *float64 `json:"percentage"`
	Recycled   bool     `json:"recycled"`
}

// Dimensions captures physical measurements. Unit applies to lengths,
// WeightUnit to the weight.
type Dimensions struct {
	Length     *float64 `json:"length"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
	Weight     *float64 `json:"weight"`
	Unit       string   `json:"unit"`
	WeightUnit *string  `json:"weightUnit"`
}

// Hazard describes a declared hazardous substance.
type Hazard struct {
	Name          string  `json:"name"`
	CASNumber     *string `json:"casNumber"`
	Concentration *string `json:"concentration"`
	HazardClass   *string `json:"hazardClass"`
}

// AnchorRef is the on-chain anchor triple. The three fields are always
// present together; a partially populated AnchorRef must never be persisted.
type AnchorRef struct {
	TxID       string
	Hash       string
	AnchoredAt time.Time
}

// Complete reports whether the triple carries all three values.
func (a AnchorRef) Complete() bool {
	return a.TxID != "" && a.Hash != "" && !a.AnchoredAt.IsZero()
}

// Passport is the mutable off-chain record protected by anchoring. Optional
// descriptive fields are pointers so the canonical serializer can distinguish
// "absent" and emit explicit nulls.
type Passport struct {
	ID             uuid.UUID
	OrganisationID uuid.UUID

	// Identity
	GTIN           *string
	SerialNumber   *string
	DigitalLinkURI *string

	// Product
	ProductName         string
	CategoryL1          string
	CategoryL2          *string
	MaterialComposition []Material
	Dimensions          *Dimensions
	TechnicalSpecs      TechSpecs

	// Manufacturer / source
	ManufacturerName *string
	CountryOfOrigin  *string
	ProductionDate   *time.Time

	// Environmental
	GWPTotal        *float64
	EmbodiedCarbon  *float64
	RecycledContent *float64
	EPDReference    *string
	CEMarking       bool

	// Circular extension
	ConditionGrade        *string
	ConditionNotes        *string
	DeconstructionDate    *time.Time
	DeconstructionMethod  *string
	ReclaimedBy           *string
	RemainingLifeEstimate *int
	CarbonSavingsVsNew    *float64
	HazardousSubstances   []Hazard

	Status PassportStatus

	// Anchor is nil until the record is committed on-chain. Any content
	// mutation clears it, returning the record to "pending anchor".
	Anchor *AnchorRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Anchored reports whether the record carries a complete anchor triple.
func (p *Passport) Anchored() bool {
	return p.Anchor != nil && p.Anchor.Complete()
}

// ClearAnchor drops the anchor triple so the record becomes pending again.
func (p *Passport) ClearAnchor() {
	p.Anchor = nil
}
