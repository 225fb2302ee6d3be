package models

import (
	"fmt"
	"time"

	"formproof/internal/proof/mapping"
	dErrors "formproof/pkg/domain-errors"
)

// State is a proof session lifecycle state.
type State string

const (
	StateNew           State = "new"
	StateDefining      State = "defining"
	StateDefined       State = "defined"
	StateRequestingURL State = "requesting_url"
	StateFallback      State = "fallback"
	StateReady         State = "ready"
	StatePolling       State = "polling"
	StateVerified      State = "verified"
	StateExpired       State = "expired"
	StateFailed        State = "failed"
)

// transitions lists the legal next states. Lifecycle is one-directional.
var transitions = map[State][]State{
	StateNew:           {StateDefining, StateReady},
	StateDefining:      {StateDefined, StateFailed},
	StateDefined:       {StateRequestingURL},
	StateRequestingURL: {StateReady, StateFallback, StateFailed},
	StateFallback:      {StateReady, StateFailed},
	StateReady:         {StatePolling},
	StatePolling:       {StateVerified, StateExpired, StateFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateVerified || s == StateExpired || s == StateFailed
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Init outcomes reported to API callers.
const (
	InitStatusSuccess              = "success"
	InitStatusFallback             = "fallback"
	InitStatusNoVerificationNeeded = "no-verification-needed"
)

// Client-visible polling statuses.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusExpired  = "expired"
	StatusFailed   = "failed"
)

// ProofSession is one verification attempt for one form.
//
// Exactly one of FormID and PublicSlug identifies the form. DefineID and
// CorrelationID are provider identifiers; ID is the caller-facing id and
// stays stable regardless of what the provider returns.
type ProofSession struct {
	ID                   string              `json:"id"`
	FormID               *int64              `json:"formId,omitempty"`
	PublicSlug           string              `json:"publicSlug,omitempty"`
	FormName             string              `json:"formName"`
	DefineID             string              `json:"defineId,omitempty"`
	CorrelationID        string              `json:"correlationId,omitempty"`
	ProviderRef          string              `json:"providerRef,omitempty"`
	InvitationURL        string              `json:"invitationUrl,omitempty"`
	QRSVG                string              `json:"qrSvg,omitempty"`
	State                State               `json:"state"`
	Degraded             bool                `json:"degraded"`
	RequiresVerification bool                `json:"requiresVerification"`
	Mappings             []mapping.VCMapping `json:"mappings,omitempty"`
	VerifiedAttributes   map[string]string   `json:"verifiedAttributes,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	ExpiresAt            time.Time           `json:"expiresAt"`
}

// NewProofSession creates a session in StateNew.
func NewProofSession(id string, formID *int64, publicSlug string, now time.Time, ttl time.Duration) (*ProofSession, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof id required")
	}
	if (formID == nil) == (publicSlug == "") {
		return nil, dErrors.New(dErrors.CodeBadRequest, "exactly one of formId or publicSlug is required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "session ttl must be positive")
	}
	return &ProofSession{
		ID:         id,
		FormID:     formID,
		PublicSlug: publicSlug,
		State:      StateNew,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// Transition moves the session to next or returns CodeInvalidState.
func (s *ProofSession) Transition(next State, now time.Time) error {
	if !s.State.CanTransition(next) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("proof session %s: illegal transition %s -> %s", s.ID, s.State, next))
	}
	if next == StateReady && s.State == StateFallback {
		s.Degraded = true
	}
	s.State = next
	s.UpdatedAt = now
	return nil
}

// IsExpired reports whether the session TTL has elapsed at now.
func (s *ProofSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// FormRef returns a log-friendly form identifier.
func (s *ProofSession) FormRef() string {
	if s.FormID != nil {
		return fmt.Sprintf("%d", *s.FormID)
	}
	return s.PublicSlug
}

// InitStatus maps the session to the init response status.
func (s *ProofSession) InitStatus() string {
	switch {
	case !s.RequiresVerification:
		return InitStatusNoVerificationNeeded
	case s.Degraded:
		return InitStatusFallback
	default:
		return InitStatusSuccess
	}
}

// ClientStatus maps the lifecycle state to the polling status. A session
// that needs no verification has nothing left to wait for and reports
// verified with no attributes.
func (s *ProofSession) ClientStatus() string {
	if !s.RequiresVerification && s.State == StateReady {
		return StatusVerified
	}
	switch s.State {
	case StateVerified:
		return StatusVerified
	case StateExpired:
		return StatusExpired
	case StateFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *ProofSession) Clone() *ProofSession {
	c := *s
	if s.FormID != nil {
		id := *s.FormID
		c.FormID = &id
	}
	if s.Mappings != nil {
		c.Mappings = append([]mapping.VCMapping(nil), s.Mappings...)
	}
	if s.VerifiedAttributes != nil {
		c.VerifiedAttributes = make(map[string]string, len(s.VerifiedAttributes))
		for k, v := range s.VerifiedAttributes {
			c.VerifiedAttributes[k] = v
		}
	}
	return &c
}
