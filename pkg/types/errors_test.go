package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageWithoutPosition(t *testing.T) {
	err := NewError(ErrType, Position{}, "expected %s, got %s", "number", "string")
	assert.Equal(t, "TypeError: expected number, got string", err.Error())
}

func TestErrorMessageWithPosition(t *testing.T) {
	err := NewError(ErrParse, Position{Line: 2, Column: 5}, "unexpected token")
	assert.Equal(t, "ParseError at 2:5: unexpected token", err.Error())
}

func TestErrorUnwrapChain(t *testing.T) {
	cause := errors.New("underlying failure")
	err := NewError(ErrType, Position{}, "wrapped").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}
