package service

import (
	"context"
	"maps"
	"slices"
	"time"

	"formproof/internal/proof/events"
	"formproof/internal/proof/models"
	"formproof/internal/proof/tracer"
	"formproof/internal/proof/verifier"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/requestcontext"
)

// observeCall wraps one verifier call in a span and a latency observation.
func observeCall[T any](ctx context.Context, s *Service, op verifier.Operation, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerifierCall, tracer.String(tracer.AttrOperation, string(op)))
	start := time.Now()
	res, err := fn(ctx)
	if code := verifier.StatusCodeOf(err); code != 0 {
		span.SetAttributes(tracer.Int(tracer.AttrStatusCode, code))
	}
	span.End(err)
	if s.metrics != nil {
		s.metrics.ObserveVerifierCall(string(op), err, time.Since(start))
	}
	return res, err
}

func (s *Service) save(ctx context.Context, session *models.ProofSession) error {
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to save proof session",
			"proof_id", session.ID,
			"state", string(session.State),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save proof session")
	}
	return nil
}

// publish emits a lifecycle event. Delivery failures are logged only.
func (s *Service) publish(ctx context.Context, session *models.ProofSession, typ events.Type, reason string) {
	if s.publisher == nil {
		return
	}
	e := events.Event{
		Type:          typ,
		ProofID:       session.ID,
		FormRef:       session.FormRef(),
		DefineID:      session.DefineID,
		CorrelationID: session.CorrelationID,
		Degraded:      session.Degraded || session.State == models.StateFallback,
		Reason:        reason,
		OccurredAt:    session.UpdatedAt,
	}
	if typ == events.TypeVerified {
		e.Attributes = slices.Sorted(maps.Keys(session.VerifiedAttributes))
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish proof event",
			"proof_id", session.ID,
			"event_type", string(typ),
			"error", err,
		)
	}
}

func (s *Service) recordInit(result string) {
	if s.metrics != nil {
		s.metrics.RecordInit(result)
	}
}
