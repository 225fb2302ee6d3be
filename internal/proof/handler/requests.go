package handler

import (
	"strconv"
	"strings"

	"formproof/internal/proof/service"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/platform/validation"
)

// InitProofRequest identifies the form by numeric id or public slug.
type InitProofRequest struct {
	FormID     *int64 `json:"formId,omitempty"`
	PublicSlug string `json:"publicSlug,omitempty"`
}

func (r *InitProofRequest) Normalize() {
	if r == nil {
		return
	}
	r.PublicSlug = strings.TrimSpace(r.PublicSlug)
}

// Validate requires exactly one identifier.
func (r *InitProofRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.FormID == nil && r.PublicSlug == "" {
		return dErrors.New(dErrors.CodeBadRequest, "formId or publicSlug is required")
	}
	if r.FormID != nil && r.PublicSlug != "" {
		return dErrors.New(dErrors.CodeBadRequest, "only one of formId or publicSlug may be set")
	}
	if r.FormID != nil && *r.FormID <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "formId must be positive")
	}
	return validation.CheckStringLength("publicSlug", r.PublicSlug, validation.MaxSlugLength)
}

func (r *InitProofRequest) toCommand() service.InitRequest {
	return service.InitRequest{FormID: r.FormID, PublicSlug: r.PublicSlug}
}

func (r *InitProofRequest) formRef() string {
	if r.FormID != nil {
		return strconv.FormatInt(*r.FormID, 10)
	}
	return r.PublicSlug
}
