package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"formproof/internal/proof/service"
	"formproof/pkg/platform/httputil"
	"formproof/pkg/requestcontext"
)

// Service defines the proof operations exposed over HTTP.
type Service interface {
	InitProof(ctx context.Context, req service.InitRequest) (*service.InitResult, error)
	Status(ctx context.Context, proofID string) (*service.StatusResult, error)
	QR(ctx context.Context, proofID string) (*service.QRResult, error)
}

// Handler serves the proof API used by the form renderer.
type Handler struct {
	proofs Service
	logger *slog.Logger
}

func New(proofs Service, logger *slog.Logger) *Handler {
	return &Handler{proofs: proofs, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/proofs/init", h.HandleInit)
	r.Get("/api/proofs/{proofId}", h.HandleStatus)
	r.Get("/api/proofs/{proofId}/qr", h.HandleQR)
}

// HandleInit starts a proof for a form.
//
// Input: { "formId": 12 } or { "publicSlug": "intake" }
// Output: 201 { "success": true, "proofId": "...", "invitationUrl": "...", "svg": "<svg...", "status": "success" }
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InitProofRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.proofs.InitProof(ctx, req.toCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "proof init failed",
			"error", err,
			"request_id", requestID,
			"form_id", req.formRef(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toInitResponse(res))
}

// HandleStatus reports the polling status of a proof.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	proofID := chi.URLParam(r, "proofId")

	res, err := h.proofs.Status(ctx, proofID)
	if err != nil {
		h.logger.WarnContext(ctx, "proof status failed", "error", err, "request_id", requestID, "proof_id", proofID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &StatusResponse{
		Status:     res.Status,
		Attributes: res.Attributes,
		Fields:     res.Fields,
	})
}

// HandleQR returns the QR code of a proof.
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	proofID := chi.URLParam(r, "proofId")

	res, err := h.proofs.QR(ctx, proofID)
	if err != nil {
		h.logger.WarnContext(ctx, "proof qr failed", "error", err, "request_id", requestID, "proof_id", proofID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &QRResponse{
		SVG:           res.SVG,
		InvitationURL: res.InvitationURL,
	})
}
