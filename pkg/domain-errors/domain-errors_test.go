package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These are used at every trust boundary, so the invariants "wrapped domain
// errors preserve the original code" and "errors.Is matches by code" need
// pinning.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "identity not found"}
		s.Equal("identity not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeNotFound}
		s.Equal("not_found", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	inner := errors.New("store unavailable")
	err := &Error{Code: CodeInternal, Message: "service error", Err: inner}
	s.Equal(inner, errors.Unwrap(err))
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeNotFound, Message: "identity not found"}
		err2 := &Error{Code: CodeNotFound, Message: "role not found"}
		s.True(errors.Is(err1, err2))
	})

	s.Run("does not match different codes", func() {
		s.False(errors.Is(&Error{Code: CodeNotFound}, &Error{Code: CodeInternal}))
	})

	s.Run("works through wrap chains", func() {
		inner := &Error{Code: CodeValidation, Message: "original"}
		wrapped := Wrap(inner, CodeInternal, "wrapped")
		s.True(HasCode(wrapped, CodeValidation))
	})
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	inner := New(CodeTimeout, "explanation service timed out")
	wrapped := Wrap(inner, CodeInternal, "evaluation failed")

	var e *Error
	s.Require().True(errors.As(wrapped, &e))
	s.Equal(CodeTimeout, e.Code)
}
