package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"formproof/internal/proof/events"
	"formproof/internal/proof/models"
	"formproof/internal/proof/reconcile"
	proofstore "formproof/internal/proof/store"
	"formproof/internal/proof/tracer"
	"formproof/internal/proof/verifier"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/platform/middleware/requesttime"
	"formproof/pkg/platform/validation"
)

// StatusResult is the caller-facing poll response. Attributes and Fields
// are set only when Status is verified.
type StatusResult struct {
	Status     string
	Attributes map[string]string
	Fields     []reconcile.FieldVerificationState
}

// QRResult is the rendered QR code of a proof session.
type QRResult struct {
	SVG           string
	InvitationURL string
}

// Status reports the current state of a proof, asking the verifier at most
// once. Calls for the same proof are serialised.
func (s *Service) Status(ctx context.Context, proofID string) (result *StatusResult, err error) {
	proofID, err = normalizeProofID(proofID)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanProofStatus, tracer.String(tracer.AttrProofID, proofID))
	defer func() {
		if result != nil {
			span.SetAttributes(tracer.String(tracer.AttrState, result.Status))
			if s.metrics != nil {
				s.metrics.RecordStatus(result.Status)
			}
		}
		span.End(err)
	}()

	s.locks.Lock(proofID)
	defer s.locks.Unlock(proofID)

	session, err := s.load(ctx, proofID)
	if err != nil {
		return nil, err
	}
	now := requesttime.Now(ctx)

	switch {
	case session.State.IsTerminal(), !session.RequiresVerification:
		return statusFor(session), nil
	case session.IsExpired(now):
		if err := expire(session, now); err != nil {
			return nil, err
		}
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		s.publish(ctx, session, events.TypeExpired, "session ttl elapsed")
		s.logger.InfoContext(ctx, "proof expired", "proof_id", session.ID, "define_id", session.DefineID)
		return statusFor(session), nil
	}

	res, err := observeCall(ctx, s, verifier.OpStatus, func(ctx context.Context) (*verifier.StatusResult, error) {
		return s.verifier.ProofStatus(ctx, session.ProviderRef)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "proof status check failed",
			"proof_id", session.ID,
			"define_id", session.DefineID,
			"correlation_id", session.CorrelationID,
			"status_code", verifier.StatusCodeOf(err),
			"category", string(verifier.GetCategory(err)),
			"error", err,
		)
		return &StatusResult{Status: models.StatusPending}, nil
	}

	previous := session.State
	if err := s.advance(session, res, now); err != nil {
		return nil, err
	}
	if session.State != previous {
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		s.announce(ctx, session)
	}
	return statusFor(session), nil
}

// advance applies one provider status to the session.
func (s *Service) advance(session *models.ProofSession, res *verifier.StatusResult, now time.Time) error {
	if err := startPolling(session, now); err != nil {
		return err
	}
	switch res.Status {
	case verifier.StatusVerified:
		session.VerifiedAttributes = res.Attributes
		return session.Transition(models.StateVerified, now)
	case verifier.StatusExpired:
		return session.Transition(models.StateExpired, now)
	case verifier.StatusFailed:
		return session.Transition(models.StateFailed, now)
	default:
		return nil
	}
}

// expire ends a session whose TTL elapsed. Expiry always leaves from
// polling, so a ready session that was never checked enters it first.
func expire(session *models.ProofSession, now time.Time) error {
	if err := startPolling(session, now); err != nil {
		return err
	}
	return session.Transition(models.StateExpired, now)
}

func startPolling(session *models.ProofSession, now time.Time) error {
	if session.State != models.StateReady {
		return nil
	}
	return session.Transition(models.StatePolling, now)
}

func (s *Service) announce(ctx context.Context, session *models.ProofSession) {
	switch session.State {
	case models.StateVerified:
		s.publish(ctx, session, events.TypeVerified, "")
		s.logger.InfoContext(ctx, "proof verified",
			"proof_id", session.ID,
			"define_id", session.DefineID,
			"attributes", len(session.VerifiedAttributes),
		)
	case models.StateExpired:
		s.publish(ctx, session, events.TypeExpired, "provider reported expired")
	case models.StateFailed:
		s.publish(ctx, session, events.TypeFailed, "provider reported failed")
	}
}

// QR returns the QR code of a proof, re-rendering it when the cache entry
// has been evicted.
func (s *Service) QR(ctx context.Context, proofID string) (*QRResult, error) {
	proofID, err := normalizeProofID(proofID)
	if err != nil {
		return nil, err
	}
	session, err := s.load(ctx, proofID)
	if err != nil {
		return nil, err
	}
	if session.InvitationURL == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "proof has no qr code")
	}
	svg, err := s.renderQR(ctx, session)
	if err != nil {
		s.logger.ErrorContext(ctx, "qr generation failed", "proof_id", session.ID, "define_id", session.DefineID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate proof QR code")
	}
	return &QRResult{SVG: svg, InvitationURL: session.InvitationURL}, nil
}

func (s *Service) load(ctx context.Context, proofID string) (*models.ProofSession, error) {
	session, err := s.sessions.FindByID(ctx, proofID)
	switch {
	case errors.Is(err, proofstore.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "proof not found")
	case err != nil:
		s.logger.ErrorContext(ctx, "proof session lookup failed", "proof_id", proofID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proof")
	case session == nil:
		return nil, dErrors.New(dErrors.CodeNotFound, "proof not found")
	}
	return session, nil
}

func normalizeProofID(proofID string) (string, error) {
	proofID = strings.TrimSpace(proofID)
	if proofID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "proofId is required")
	}
	if err := validation.CheckStringLength("proofId", proofID, validation.MaxProofIDLength); err != nil {
		return "", err
	}
	return proofID, nil
}

func statusFor(session *models.ProofSession) *StatusResult {
	result := &StatusResult{Status: session.ClientStatus()}
	if result.Status != models.StatusVerified {
		return result
	}
	if len(session.VerifiedAttributes) > 0 {
		result.Attributes = session.VerifiedAttributes
	}
	if len(session.Mappings) > 0 {
		result.Fields = reconcile.Reconcile(session.Mappings, session.VerifiedAttributes)
	}
	return result
}
