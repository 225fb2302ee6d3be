package handler

import (
	"formproof/internal/proof/reconcile"
	"formproof/internal/proof/service"
)

// InitProofResponse is returned by POST /api/proofs/init.
type InitProofResponse struct {
	Success              bool   `json:"success"`
	ProofID              string `json:"proofId"`
	InvitationURL        string `json:"invitationUrl,omitempty"`
	SVG                  string `json:"svg,omitempty"`
	Status               string `json:"status"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// StatusResponse is returned by GET /api/proofs/{proofId}.
// Fields maps verified attributes back onto the form fields that asked
// for them.
type StatusResponse struct {
	Status     string                             `json:"status"`
	Attributes map[string]string                  `json:"attributes,omitempty"`
	Fields     []reconcile.FieldVerificationState `json:"fields,omitempty"`
}

// QRResponse is returned by GET /api/proofs/{proofId}/qr.
type QRResponse struct {
	SVG           string `json:"svg"`
	InvitationURL string `json:"invitationUrl"`
}

func toInitResponse(res *service.InitResult) *InitProofResponse {
	return &InitProofResponse{
		Success:              true,
		ProofID:              res.ProofID,
		InvitationURL:        res.InvitationURL,
		SVG:                  res.SVG,
		Status:               res.Status,
		RequiresVerification: res.RequiresVerification,
	}
}
