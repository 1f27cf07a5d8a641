package handler

import (
	"time"

	"gestionale/internal/disbursement"
)

// requestResponse is the wire shape of a disbursement request. Money stays
// in cents; the front end owns formatting.
type requestResponse struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	OwnerID          string     `json:"owner_id"`
	CommunityID      *string    `json:"community_id,omitempty"`
	GrossAmountCents int64      `json:"gross_amount_cents"`
	NetAmountCents   int64      `json:"net_amount_cents"`
	Category         string     `json:"category"`
	Description      string     `json:"description"`
	State            string     `json:"state"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	IntegrationNote  *string    `json:"integration_note,omitempty"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toRequestResponse(req *disbursement.Request) requestResponse {
	out := requestResponse{
		ID:               req.ID.String(),
		Kind:             string(req.Kind),
		OwnerID:          req.OwnerID.String(),
		GrossAmountCents: req.GrossAmountCents,
		NetAmountCents:   req.NetAmountCents,
		Category:         req.Category,
		Description:      req.Description,
		State:            string(req.State),
		RejectionReason:  req.RejectionReason,
		IntegrationNote:  req.IntegrationNote,
		PaymentReference: req.PaymentReference,
		PaidAt:           req.PaidAt,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}
	if req.Community != nil {
		community := req.Community.String()
		out.CommunityID = &community
	}
	return out
}
