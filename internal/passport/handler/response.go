package handler

import (
	"time"

	"tracehub/internal/domain"
)

type anchorResponse struct {
	TxID       string    `json:"txId"`
	Hash       string    `json:"hash"`
	AnchoredAt time.Time `json:"anchoredAt"`
}

type passportResponse struct {
	ID                  string             `json:"id"`
	OrganisationID      string             `json:"organisationId"`
	ProductName         string             `json:"productName"`
	CategoryL1          string             `json:"categoryL1"`
	CategoryL2          *string            `json:"categoryL2,omitempty"`
	GTIN                *string            `json:"gtin,omitempty"`
	SerialNumber        *string            `json:"serialNumber,omitempty"`
	DigitalLinkURI      *string            `json:"digitalLinkUri,omitempty"`
	MaterialComposition []domain.Material  `json:"materialComposition,omitempty"`
	Dimensions          *domain.Dimensions `json:"dimensions,omitempty"`
	TechnicalSpecs      domain.TechSpecs   `json:"technicalSpecs,omitempty"`
	ManufacturerName    *string            `json:"manufacturerName,omitempty"`
	CountryOfOrigin     *string            `json:"countryOfOrigin,omitempty"`
	ProductionDate      *time.Time         `json:"productionDate,omitempty"`
	GWPTotal            *float64           `json:"gwpTotal,omitempty"`
	EmbodiedCarbon      *float64           `json:"embodiedCarbon,omitempty"`
	RecycledContent     *float64           `json:"recycledContent,omitempty"`
	EPDReference        *string            `json:"epdReference,omitempty"`
	CEMarking           bool               `json:"ceMarking"`
	ConditionGrade      *string            `json:"conditionGrade,omitempty"`
	ConditionNotes      *string            `json:"conditionNotes,omitempty"`
	DeconstructionDate  *time.Time         `json:"deconstructionDate,omitempty"`
	DeconstructionMeth  *string            `json:"deconstructionMethod,omitempty"`
	ReclaimedBy         *string            `json:"reclaimedBy,omitempty"`
	RemainingLife       *int               `json:"remainingLifeEstimate,omitempty"`
	CarbonSavingsVsNew  *float64           `json:"carbonSavingsVsNew,omitempty"`
	HazardousSubstances []domain.Hazard    `json:"hazardousSubstances,omitempty"`
	Status              string             `json:"status"`
	Anchor              *anchorResponse    `json:"anchor,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

type listResponse struct {
	Items  []passportResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func toResponse(p *domain.Passport) passportResponse {
	resp := passportResponse{
		ID:                  p.ID.String(),
		OrganisationID:      p.OrganisationID.String(),
		ProductName:         p.ProductName,
		CategoryL1:          p.CategoryL1,
		CategoryL2:          p.CategoryL2,
		GTIN:                p.GTIN,
		SerialNumber:        p.SerialNumber,
		DigitalLinkURI:      p.DigitalLinkURI,
		MaterialComposition: p.MaterialComposition,
		Dimensions:          p.Dimensions,
		TechnicalSpecs:      p.TechnicalSpecs,
		ManufacturerName:    p.ManufacturerName,
		CountryOfOrigin:     p.CountryOfOrigin,
		ProductionDate:      p.ProductionDate,
		GWPTotal:            p.GWPTotal,
		EmbodiedCarbon:      p.EmbodiedCarbon,
		RecycledContent:     p.RecycledContent,
		EPDReference:        p.EPDReference,
		CEMarking:           p.CEMarking,
		ConditionGrade:      p.ConditionGrade,
		ConditionNotes:      p.ConditionNotes,
		DeconstructionDate:  p.DeconstructionDate,
		DeconstructionMeth:  p.DeconstructionMethod,
		ReclaimedBy:         p.ReclaimedBy,
		RemainingLife:       p.RemainingLifeEstimate,
		CarbonSavingsVsNew:  p.CarbonSavingsVsNew,
		HazardousSubstances: p.HazardousSubstances,
		Status:              string(p.Status),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.Anchor != nil {
		resp.Anchor = &anchorResponse{
			TxID:       p.Anchor.TxID,
			Hash:       p.Anchor.Hash,
			AnchoredAt: p.Anchor.AnchoredAt,
		}
	}
	return resp
}
