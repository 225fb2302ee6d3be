package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite covers the error primitives every layer relies on to
// pick an HTTP status: code preservation through Wrap and code-based
// matching through errors.Is.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorString() {
	s.Run("prefers the message", func() {
		err := &Error{Code: CodeNotFound, Message: "form not found"}
		s.Equal("form not found", err.Error())
	})

	s.Run("falls back to the code", func() {
		err := &Error{Code: CodeConfiguration}
		s.Equal("configuration_error", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	s.Run("same code, different message", func() {
		a := &Error{Code: CodeNotFound, Message: "form not found"}
		b := &Error{Code: CodeNotFound, Message: "proof session not found"}
		s.True(a.Is(b))
	})

	s.Run("different code", func() {
		s.False((&Error{Code: CodeNotFound}).Is(&Error{Code: CodeProviderFailure}))
	})

	s.Run("plain errors never match", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not found")))
	})

	s.Run("errors.Is walks the chain", func() {
		inner := &Error{Code: CodeNotFound}
		outer := &Error{Code: CodeInternal, Err: inner}
		s.True(errors.Is(outer, &Error{Code: CodeNotFound}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the original domain code", func() {
		wrapped := Wrap(New(CodeNotFound, "form not found"), CodeInternal, "init proof")
		s.Equal(CodeNotFound, CodeOf(wrapped))
		s.Equal("init proof", wrapped.Error())
	})

	s.Run("applies the given code to plain errors", func() {
		root := errors.New("connection refused")
		wrapped := Wrap(root, CodeProviderFailure, "define proof failed")
		s.Equal(CodeProviderFailure, CodeOf(wrapped))
		s.True(errors.Is(wrapped, root))
	})
}

func (s *DomainErrorsSuite) TestHasCodeAndCodeOf() {
	err := fmt.Errorf("handler: %w", New(CodeBadRequest, "formId or publicSlug required"))

	s.True(HasCode(err, CodeBadRequest))
	s.False(HasCode(err, CodeNotFound))
	s.False(HasCode(nil, CodeBadRequest))
	s.Equal(CodeBadRequest, CodeOf(err))
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
}
