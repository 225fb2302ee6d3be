package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	formstore "formproof/internal/forms/store"
	"formproof/internal/proof/events"
	"formproof/internal/proof/models"
	"formproof/internal/proof/payload"
	"formproof/internal/proof/qr"
	"formproof/internal/proof/verifier"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/platform/circuit"
	fixtures "formproof/pkg/testutil"
)

const fallbackURL = "https://verifier.example/v1/proofs/42/request"

func urlOutage() error {
	return verifier.NewProviderError(verifier.ErrorProviderOutage, verifier.OpRequestURL, http.StatusBadGateway, "unexpected status code: 502", nil)
}

func (s *ServiceSuite) mappedForm() *fixtures.FormBuilder {
	return fixtures.NewFormBuilder().
		WithName("Intake").
		WithVCField("firstName", "BC Person Credential", "given_name", "required").
		WithField("comments")
}

func (s *ServiceSuite) TestInitProofFallback() {
	s.Run("URL issuance failure degrades to the fallback URL", func() {
		s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(s.mappedForm().Build(), nil)
		s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).
			Return(&verifier.DefineResult{DefineID: "42", StatusCode: http.StatusOK}, nil)
		s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).Return(nil, urlOutage())
		s.mockVerifier.EXPECT().FallbackURL("42").Return(fallbackURL)

		var saved *models.ProofSession
		s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, session *models.ProofSession) error {
				saved = session
				return nil
			})

		result, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
		s.Require().NoError(err)
		s.Equal(testProofID, result.ProofID)
		s.Equal(models.InitStatusFallback, result.Status)
		s.Equal(fallbackURL, result.InvitationURL)
		s.True(strings.HasPrefix(result.SVG, "<svg"))
		s.True(result.RequiresVerification)

		s.Require().NotNil(saved)
		s.Equal(models.StateReady, saved.State)
		s.True(saved.Degraded)
		s.Equal("42", saved.ProviderRef, "fallback sessions are polled by define id")
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.FallbacksTotal.WithLabelValues(fallbackURLError)))
		s.Equal([]events.Type{events.TypeFallback, events.TypeInitiated}, s.publisher.Types())
	})
}

func (s *ServiceSuite) TestInitProofSuccess() {
	s.mockForms.EXPECT().FindBySlug(gomock.Any(), "intake").Return(s.mappedForm().Build(), nil)
	s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p payload.DefinePayload) (*verifier.DefineResult, error) {
			s.Equal("Intake", p.ProofName)
			s.Require().Len(p.RequestedAttributes, 1)
			s.Equal([]string{"given_name"}, p.RequestedAttributes[0].Attributes)
			return &verifier.DefineResult{DefineID: "42"}, nil
		})

	var correlationID string
	s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req verifier.URLRequest) (*verifier.URLResult, error) {
			s.Equal("42", req.DefineID)
			_, err := uuid.Parse(req.CorrelationID)
			s.NoError(err, "correlation id is a fresh UUID")
			correlationID = req.CorrelationID
			return &verifier.URLResult{ShortURL: "https://v.example/s/abc"}, nil
		})

	var saved *models.ProofSession
	s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, session *models.ProofSession) error {
			saved = session
			return nil
		})

	result, err := s.service.InitProof(s.ctx(), InitRequest{PublicSlug: "  intake "})
	s.Require().NoError(err)
	s.Equal(models.InitStatusSuccess, result.Status)
	s.Equal("https://v.example/s/abc", result.InvitationURL)
	s.NotEqual("42", result.ProofID, "caller-facing id is generated locally")

	s.Equal(correlationID, saved.ProviderRef)
	s.False(saved.Degraded)
	s.Equal(fixtures.FixedTime.Add(defaultSessionTTL), saved.ExpiresAt)

	cached, ok := s.service.QRCache().Get("42")
	s.True(ok, "QR is cached by define id")
	s.Equal(result.SVG, cached)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.InitsTotal.WithLabelValues(models.InitStatusSuccess)))
}

func (s *ServiceSuite) TestInitProofWithoutMappings() {
	s.mockForms.EXPECT().FindByID(gomock.Any(), int64(7)).
		Return(fixtures.NewFormBuilder().WithID(7).WithField("comments").Build(), nil)
	s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).Times(0)
	s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(7)})
	s.Require().NoError(err)
	s.Equal(models.InitStatusNoVerificationNeeded, result.Status)
	s.False(result.RequiresVerification)
	s.Empty(result.InvitationURL)
	s.Empty(result.SVG)
	s.Empty(s.publisher.Events())
}

func (s *ServiceSuite) TestInitProofRejectsMissingIdentifiers() {
	tests := []struct {
		name string
		req  InitRequest
	}{
		{"neither identifier", InitRequest{}},
		{"blank slug", InitRequest{PublicSlug: "   "}},
		{"both identifiers", InitRequest{FormID: formID(1), PublicSlug: "intake"}},
		{"oversized slug", InitRequest{PublicSlug: strings.Repeat("a", 201)}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.InitProof(s.ctx(), tt.req)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}

func (s *ServiceSuite) TestInitProofFormLookup() {
	s.Run("unknown form is not found", func() {
		s.mockForms.EXPECT().FindBySlug(gomock.Any(), "missing").Return(nil, formstore.ErrNotFound)
		_, err := s.service.InitProof(s.ctx(), InitRequest{PublicSlug: "missing"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure is internal", func() {
		s.mockForms.EXPECT().FindByID(gomock.Any(), int64(3)).Return(nil, errors.New("connection reset"))
		_, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(3)})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestInitProofDefineFailure() {
	s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(s.mappedForm().Build(), nil)
	s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).
		Return(nil, verifier.NewProviderError(verifier.ErrorBadData, verifier.OpDefine, http.StatusUnprocessableEntity, "unexpected status code: 422", nil))

	_, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeProviderFailure))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.InitsTotal.WithLabelValues(initResultError)))
}

func (s *ServiceSuite) TestInitProofDropsUnresolvableTypes() {
	s.Run("unknown type is left out of the payload", func() {
		form := s.mappedForm().WithVCField("licence", "Unknown Credential", "licence_no", "optional").Build()
		s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(form, nil)
		s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p payload.DefinePayload) (*verifier.DefineResult, error) {
				s.Len(p.RequestedAttributes, 1)
				return &verifier.DefineResult{DefineID: "43"}, nil
			})
		s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).
			Return(&verifier.URLResult{ShortURL: "https://v.example/s/def"}, nil)
		s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
		s.Require().NoError(err)
		s.Equal(models.InitStatusSuccess, result.Status)
	})

	s.Run("nothing resolvable fails without calling define", func() {
		form := fixtures.NewFormBuilder().WithVCField("licence", "Unknown Credential", "licence_no", "required").Build()
		s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(form, nil)

		_, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
		s.True(dErrors.HasCode(err, dErrors.CodeProviderFailure))
	})
}

func (s *ServiceSuite) TestInitProofOpenCircuitSkipsURLIssuance() {
	s.breaker = circuit.New("proof-url", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	s.service = s.newService()
	s.breaker.RecordFailure()
	s.Require().True(s.breaker.IsOpen())

	s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(s.mappedForm().Build(), nil)
	s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).Return(&verifier.DefineResult{DefineID: "42"}, nil)
	s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).Times(0)
	s.mockVerifier.EXPECT().FallbackURL("42").Return(fallbackURL)
	s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
	s.Require().NoError(err)
	s.Equal(models.InitStatusFallback, result.Status)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.FallbacksTotal.WithLabelValues(fallbackCircuitOpen)))
}

func (s *ServiceSuite) TestRepeatedURLFailuresOpenCircuit() {
	for range 3 {
		s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(s.mappedForm().Build(), nil)
		s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).Return(&verifier.DefineResult{DefineID: "42"}, nil)
		s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).Return(nil, urlOutage())
		s.mockVerifier.EXPECT().FallbackURL("42").Return(fallbackURL)
		s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
		s.Require().NoError(err)
	}
	s.True(s.breaker.IsOpen())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitOpenEvents))
}

func (s *ServiceSuite) TestInitProofQRFailure() {
	failing := qr.NewCache(qr.WithRenderer(func(string) (string, error) {
		return "", errors.New("encoder exploded")
	}))
	s.service = s.newService(WithQRCache(failing))

	s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(s.mappedForm().Build(), nil)
	s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).Return(&verifier.DefineResult{DefineID: "42"}, nil)
	s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).Return(nil, urlOutage())
	s.mockVerifier.EXPECT().FallbackURL("42").Return(fallbackURL)

	_, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestInitProofUnencodableURLFallsBack() {
	longURL := "https://v.example/s/" + strings.Repeat("a", 4000)

	s.mockForms.EXPECT().FindByID(gomock.Any(), int64(1)).Return(s.mappedForm().Build(), nil)
	s.mockVerifier.EXPECT().DefineProof(gomock.Any(), gomock.Any()).Return(&verifier.DefineResult{DefineID: "42"}, nil)
	s.mockVerifier.EXPECT().RequestProofURL(gomock.Any(), gomock.Any()).Return(&verifier.URLResult{ShortURL: longURL}, nil)
	s.mockVerifier.EXPECT().FallbackURL("42").Return(fallbackURL)
	saved := s.captureSave()

	result, err := s.service.InitProof(s.ctx(), InitRequest{FormID: formID(1)})
	s.Require().NoError(err)
	s.Equal(models.InitStatusFallback, result.Status)
	s.Equal(fallbackURL, result.InvitationURL)
	s.True(strings.HasPrefix(result.SVG, "<svg"))

	s.Equal(models.StateReady, saved.State)
	s.True(saved.Degraded)
	s.Equal("42", saved.ProviderRef)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.FallbacksTotal.WithLabelValues(fallbackQRError)))
	s.Equal([]events.Type{events.TypeFallback, events.TypeInitiated}, s.publisher.Types())
}
