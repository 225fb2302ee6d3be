package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/mock/gomock"

	"formproof/internal/proof/events"
	"formproof/internal/proof/mapping"
	"formproof/internal/proof/models"
	"formproof/internal/proof/reconcile"
	proofstore "formproof/internal/proof/store"
	"formproof/internal/proof/verifier"
	dErrors "formproof/pkg/domain-errors"
	fixtures "formproof/pkg/testutil"
)

func (s *ServiceSuite) captureSave() *models.ProofSession {
	saved := &models.ProofSession{}
	s.mockSessions.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, session *models.ProofSession) error {
			*saved = *session
			return nil
		})
	return saved
}

func (s *ServiceSuite) TestStatusUnknownProof() {
	s.mockSessions.EXPECT().FindByID(gomock.Any(), "nope").Return(nil, proofstore.ErrNotFound)

	_, err := s.service.Status(s.ctx(), "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStatusRejectsBlankID() {
	_, err := s.service.Status(s.ctx(), "  ")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestStatusPending() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).WithProviderRef("corr-1").Build()
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)
	s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), "corr-1").
		Return(&verifier.StatusResult{Status: verifier.StatusPending, StatusCode: http.StatusOK}, nil)
	saved := s.captureSave()

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, result.Status)
	s.Nil(result.Attributes)
	s.Equal(models.StatePolling, saved.State, "first provider check starts polling")
}

func (s *ServiceSuite) TestStatusVerified() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).WithProviderRef("corr-1").
		WithState(models.StatePolling).
		WithMappings(
			mapping.VCMapping{FieldKey: "firstName", CredentialType: "BC Person Credential", AttributeName: "given_name", Mode: mapping.ModeRequired},
			mapping.VCMapping{FieldKey: "email", CredentialType: "BC Person Credential", AttributeName: "email", Mode: mapping.ModeOptional},
		).Build()
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)
	s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), "corr-1").Return(&verifier.StatusResult{
		Status:     verifier.StatusVerified,
		Attributes: map[string]string{"given_name": "Ada", "family_name": "Lovelace"},
	}, nil)
	saved := s.captureSave()

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, result.Status)
	s.Equal("Ada", result.Attributes["given_name"])
	s.Equal([]reconcile.FieldVerificationState{
		{FieldKey: "firstName", AttributeName: "given_name", Verified: true, Value: "Ada"},
		{FieldKey: "email", AttributeName: "email"},
	}, result.Fields, "verified attributes are reconciled onto the mapped fields")
	s.Equal(models.StateVerified, saved.State)

	published := s.publisher.Events()
	s.Require().Len(published, 1)
	s.Equal(events.TypeVerified, published[0].Type)
	s.Equal([]string{"family_name", "given_name"}, published[0].Attributes, "only attribute names are published")
}

func (s *ServiceSuite) TestStatusProviderTerminalStates() {
	tests := []struct {
		name     string
		provider string
		want     string
		event    events.Type
	}{
		{"provider expired", verifier.StatusExpired, models.StatusExpired, events.TypeExpired},
		{"provider failed", verifier.StatusFailed, models.StatusFailed, events.TypeFailed},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.publisher = events.NewMemoryPublisher()
			s.service = s.newService()
			session := fixtures.NewSessionBuilder().WithID(testProofID).WithProviderRef("42").WithDegraded().Build()
			s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)
			s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), "42").Return(&verifier.StatusResult{Status: tt.provider}, nil)
			s.captureSave()

			result, err := s.service.Status(s.ctx(), testProofID)
			s.Require().NoError(err)
			s.Equal(tt.want, result.Status)
			s.Equal([]events.Type{tt.event}, s.publisher.Types())
		})
	}
}

func (s *ServiceSuite) TestStatusExpiresLocally() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).
		ExpiresAt(fixtures.FixedTime.Add(-time.Second)).Build()
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)
	s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), gomock.Any()).Times(0)
	saved := s.captureSave()

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, result.Status)
	s.Equal(models.StateExpired, saved.State)
	s.Equal([]events.Type{events.TypeExpired}, s.publisher.Types())
}

func (s *ServiceSuite) TestStatusExpiresWhilePolling() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).WithState(models.StatePolling).
		ExpiresAt(fixtures.FixedTime).Build()
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)
	s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), gomock.Any()).Times(0)
	saved := s.captureSave()

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, result.Status)
	s.Equal(models.StateExpired, saved.State)
	s.Equal(fixtures.FixedTime, saved.UpdatedAt)
}

func (s *ServiceSuite) TestStatusTerminalIsReturnedAsIs() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).WithState(models.StateVerified).Build()
	session.VerifiedAttributes = map[string]string{"given_name": "Ada"}
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, result.Status)
	s.Equal(map[string]string{"given_name": "Ada"}, result.Attributes)
}

func (s *ServiceSuite) TestStatusWithoutVerification() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).WithoutVerification().Build()
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, result.Status)
	s.Nil(result.Attributes)
}

func (s *ServiceSuite) TestStatusProviderErrorReportsPending() {
	session := fixtures.NewSessionBuilder().WithID(testProofID).WithProviderRef("corr-1").Build()
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil)
	s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), "corr-1").
		Return(nil, verifier.NewProviderError(verifier.ErrorNotFound, verifier.OpStatus, http.StatusNotFound, "unexpected status code: 404", nil))

	result, err := s.service.Status(s.ctx(), testProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, result.Status)
}

func (s *ServiceSuite) TestStatusStoreFailure() {
	s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(nil, errors.New("redis: connection refused"))

	_, err := s.service.Status(s.ctx(), testProofID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestConcurrentStatusChecksAreSerialised() {
	sessions := proofstore.NewInMemoryStore()
	s.Require().NoError(sessions.Save(context.Background(),
		fixtures.NewSessionBuilder().WithID(testProofID).WithProviderRef("corr-1").Build()))

	svc, err := New(s.mockForms, s.mockVerifier, sessions, s.service.builder, WithPublisher(s.publisher))
	s.Require().NoError(err)

	s.mockVerifier.EXPECT().ProofStatus(gomock.Any(), "corr-1").
		Return(&verifier.StatusResult{Status: verifier.StatusVerified, Attributes: map[string]string{"given_name": "Ada"}}, nil).
		Times(1)

	result := fixtures.RunConcurrent(10, func(int) error {
		res, err := svc.Status(s.ctx(), testProofID)
		if err != nil {
			return err
		}
		if res.Status != models.StatusVerified {
			return errors.New("unexpected status " + res.Status)
		}
		return nil
	})
	s.Equal(int32(10), result.Successes)
	s.Equal([]events.Type{events.TypeVerified}, s.publisher.Types())
}

func (s *ServiceSuite) TestQR() {
	s.Run("renders and caches", func() {
		session := fixtures.NewSessionBuilder().WithID(testProofID).Build()
		s.mockSessions.EXPECT().FindByID(gomock.Any(), testProofID).Return(session, nil).Times(2)

		first, err := s.service.QR(s.ctx(), testProofID)
		s.Require().NoError(err)
		s.Equal(session.InvitationURL, first.InvitationURL)

		second, err := s.service.QR(s.ctx(), testProofID)
		s.Require().NoError(err)
		s.Equal(first.SVG, second.SVG)
		s.Equal(1, s.service.QRCache().Len())
	})

	s.Run("unknown proof", func() {
		s.mockSessions.EXPECT().FindByID(gomock.Any(), "nope").Return(nil, proofstore.ErrNotFound)
		_, err := s.service.QR(s.ctx(), "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("no verification means no QR", func() {
		session := fixtures.NewSessionBuilder().WithID("p-2").WithoutVerification().Build()
		s.mockSessions.EXPECT().FindByID(gomock.Any(), "p-2").Return(session, nil)
		_, err := s.service.QR(s.ctx(), "p-2")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
