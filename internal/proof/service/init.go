package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	formmodels "formproof/internal/forms/models"
	formstore "formproof/internal/forms/store"
	"formproof/internal/proof/events"
	"formproof/internal/proof/mapping"
	"formproof/internal/proof/models"
	"formproof/internal/proof/tracer"
	"formproof/internal/proof/verifier"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/platform/middleware/requesttime"
	"formproof/pkg/platform/validation"
)

// Fallback reasons, used as metric labels and event reasons.
const (
	fallbackURLError    = "url_error"
	fallbackCircuitOpen = "circuit_open"
	fallbackQRError     = "qr_error"
)

const initResultError = "error"

// InitRequest identifies the form to verify. Exactly one field is set.
type InitRequest struct {
	FormID     *int64
	PublicSlug string
}

// InitResult is returned to the API caller. InvitationURL and SVG are empty
// when the form needs no verification.
type InitResult struct {
	ProofID              string
	InvitationURL        string
	SVG                  string
	Status               string
	RequiresVerification bool
}

// InitProof runs define -> request URL -> (fallback) -> QR for one form and
// stores the resulting session.
func (s *Service) InitProof(ctx context.Context, req InitRequest) (result *InitResult, err error) {
	now := requesttime.Now(ctx)
	slug := strings.TrimSpace(req.PublicSlug)
	if err := validation.CheckStringLength("publicSlug", slug, validation.MaxSlugLength); err != nil {
		return nil, err
	}
	session, err := models.NewProofSession(s.newID(), req.FormID, slug, now, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanProofInit,
		tracer.String(tracer.AttrProofID, session.ID),
		tracer.String(tracer.AttrFormRef, session.FormRef()),
	)
	defer func() {
		if err != nil {
			s.recordInit(initResultError)
		}
		span.End(err)
	}()

	form, err := s.resolveForm(ctx, session)
	if err != nil {
		return nil, err
	}
	session.FormName = form.DisplayName()
	session.Mappings = mapping.Extract(form.Definition)
	span.SetAttributes(tracer.Int(tracer.AttrMappings, len(session.Mappings)))

	if len(session.Mappings) == 0 {
		return s.finishWithoutVerification(ctx, session, now)
	}
	session.RequiresVerification = true

	if err := s.define(ctx, session, now); err != nil {
		return nil, err
	}

	if err := s.issueURL(ctx, session, now); err != nil {
		return nil, err
	}

	svg, err := s.renderInvitation(ctx, session, now)
	if err != nil {
		return nil, err
	}
	session.QRSVG = svg
	if err := session.Transition(models.StateReady, now); err != nil {
		return nil, err
	}

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracer.String(tracer.AttrDefineID, session.DefineID),
		tracer.Bool(tracer.AttrDegraded, session.Degraded),
	)
	s.recordInit(session.InitStatus())
	s.publish(ctx, session, events.TypeInitiated, "")
	s.logger.InfoContext(ctx, "proof initialised",
		"proof_id", session.ID,
		"form_id", session.FormRef(),
		"define_id", session.DefineID,
		"correlation_id", session.CorrelationID,
		"status", session.InitStatus(),
		"mappings", len(session.Mappings),
	)
	return resultFor(session), nil
}

func (s *Service) resolveForm(ctx context.Context, session *models.ProofSession) (*formmodels.Form, error) {
	var (
		form *formmodels.Form
		err  error
	)
	if session.FormID != nil {
		form, err = s.forms.FindByID(ctx, *session.FormID)
	} else {
		form, err = s.forms.FindBySlug(ctx, session.PublicSlug)
	}
	switch {
	case errors.Is(err, formstore.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "form not found")
	case err != nil:
		s.logger.ErrorContext(ctx, "form lookup failed", "form_id", session.FormRef(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form")
	case form == nil:
		return nil, dErrors.New(dErrors.CodeNotFound, "form not found")
	}
	return form, nil
}

func (s *Service) finishWithoutVerification(ctx context.Context, session *models.ProofSession, now time.Time) (*InitResult, error) {
	if err := session.Transition(models.StateReady, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.recordInit(session.InitStatus())
	s.logger.InfoContext(ctx, "proof not required",
		"proof_id", session.ID,
		"form_id", session.FormRef(),
	)
	return resultFor(session), nil
}

// define registers the proof shape. Any failure here is final: without a
// define id there is nothing to fall back to.
func (s *Service) define(ctx context.Context, session *models.ProofSession, now time.Time) error {
	if err := session.Transition(models.StateDefining, now); err != nil {
		return err
	}
	body, warnings := s.builder.Build(ctx, session.FormName, session.Mappings)
	if len(body.RequestedAttributes) == 0 {
		s.logger.ErrorContext(ctx, "no resolvable credential types",
			"proof_id", session.ID,
			"form_id", session.FormRef(),
			"warnings", len(warnings),
		)
		_ = session.Transition(models.StateFailed, now)
		return dErrors.New(dErrors.CodeProviderFailure, "proof definition has no resolvable credential types")
	}

	res, err := observeCall(ctx, s, verifier.OpDefine, func(ctx context.Context) (*verifier.DefineResult, error) {
		return s.verifier.DefineProof(ctx, body)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "proof define failed",
			"proof_id", session.ID,
			"form_id", session.FormRef(),
			"status_code", verifier.StatusCodeOf(err),
			"category", string(verifier.GetCategory(err)),
			"error", err,
		)
		_ = session.Transition(models.StateFailed, now)
		return dErrors.Wrap(err, dErrors.CodeProviderFailure, "proof define failed")
	}
	session.DefineID = res.DefineID
	return session.Transition(models.StateDefined, now)
}

// issueURL requests the shareable URL and degrades to the fallback URL on
// any failure or while the breaker is open.
func (s *Service) issueURL(ctx context.Context, session *models.ProofSession, now time.Time) error {
	session.CorrelationID = uuid.NewString()
	if err := session.Transition(models.StateRequestingURL, now); err != nil {
		return err
	}

	url, reason := s.requestURL(ctx, session)
	if reason == "" {
		session.InvitationURL = url
		session.ProviderRef = session.CorrelationID
		return nil
	}

	return s.useFallback(ctx, session, now, reason)
}

// useFallback points the session at the provider's request-by-id page.
func (s *Service) useFallback(ctx context.Context, session *models.ProofSession, now time.Time, reason string) error {
	if err := session.Transition(models.StateFallback, now); err != nil {
		return err
	}
	session.InvitationURL = s.verifier.FallbackURL(session.DefineID)
	session.ProviderRef = session.DefineID
	if s.metrics != nil {
		s.metrics.RecordFallback(reason)
	}
	s.publish(ctx, session, events.TypeFallback, reason)
	s.logger.WarnContext(ctx, "using fallback proof url",
		"proof_id", session.ID,
		"define_id", session.DefineID,
		"correlation_id", session.CorrelationID,
		"reason", reason,
	)
	return nil
}

func (s *Service) requestURL(ctx context.Context, session *models.ProofSession) (string, string) {
	if s.breaker != nil && !s.breaker.Allow() {
		return "", fallbackCircuitOpen
	}
	res, err := observeCall(ctx, s, verifier.OpRequestURL, func(ctx context.Context) (*verifier.URLResult, error) {
		return s.verifier.RequestProofURL(ctx, verifier.URLRequest{
			DefineID:      session.DefineID,
			CorrelationID: session.CorrelationID,
		})
	})
	if err != nil {
		s.logger.WarnContext(ctx, "proof url request failed",
			"proof_id", session.ID,
			"define_id", session.DefineID,
			"correlation_id", session.CorrelationID,
			"status_code", verifier.StatusCodeOf(err),
			"category", string(verifier.GetCategory(err)),
			"error", err,
		)
		s.recordURLOutcome(ctx, false)
		return "", fallbackURLError
	}
	s.recordURLOutcome(ctx, true)
	return res.ShortURL, ""
}

func (s *Service) recordURLOutcome(ctx context.Context, ok bool) {
	if s.breaker == nil {
		return
	}
	if ok {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "proof url circuit closed", "breaker", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "proof url circuit opened", "breaker", s.breaker.Name())
		if s.metrics != nil {
			s.metrics.RecordCircuitOpen()
		}
	}
}

// renderInvitation renders the QR for the issued URL. A primary URL that
// cannot be encoded degrades to the fallback URL; only a fallback render
// failure is fatal.
func (s *Service) renderInvitation(ctx context.Context, session *models.ProofSession, now time.Time) (string, error) {
	svg, err := s.renderQR(ctx, session)
	if err != nil && session.State == models.StateRequestingURL {
		s.logger.WarnContext(ctx, "qr generation failed for issued url",
			"proof_id", session.ID,
			"define_id", session.DefineID,
			"url_length", len(session.InvitationURL),
			"error", err,
		)
		s.qrCache.Evict(session.DefineID)
		if ferr := s.useFallback(ctx, session, now, fallbackQRError); ferr != nil {
			return "", ferr
		}
		svg, err = s.renderQR(ctx, session)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "qr generation failed",
			"proof_id", session.ID,
			"define_id", session.DefineID,
			"degraded", session.State == models.StateFallback,
			"error", err,
		)
		_ = session.Transition(models.StateFailed, now)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate proof QR code")
	}
	return svg, nil
}

func (s *Service) renderQR(ctx context.Context, session *models.ProofSession) (string, error) {
	_, span := s.tracer.Start(ctx, tracer.SpanQRRender, tracer.String(tracer.AttrDefineID, session.DefineID))
	svg, err := s.qrCache.GetOrRender(session.DefineID, session.InvitationURL)
	span.End(err)
	if s.metrics != nil {
		s.metrics.SetQRCacheEntries(s.qrCache.Len())
	}
	return svg, err
}

func resultFor(session *models.ProofSession) *InitResult {
	return &InitResult{
		ProofID:              session.ID,
		InvitationURL:        session.InvitationURL,
		SVG:                  session.QRSVG,
		Status:               session.InitStatus(),
		RequiresVerification: session.RequiresVerification,
	}
}
