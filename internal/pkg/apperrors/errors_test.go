package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramErrorCodes(t *testing.T) {
	assert.Equal(t, 6000, UnsupportedProtocol().Code)
	assert.Equal(t, 6001, MathOverflow().Code)
	assert.Equal(t, 6002, InsufficientUserPositionFunds().Code)
	assert.Equal(t, 0, NewNotFound("x").Code)
}

func TestTypeOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("deposit leg 1: %w", MathOverflow())
	assert.True(t, Is(err, ErrMathOverflow))
	assert.False(t, Is(err, ErrUnsupportedProtocol))
	assert.Equal(t, ErrInternal, TypeOf(errors.New("boom")))
	assert.False(t, Is(nil, ErrInternal))
}

func TestWrapKeepsAppError(t *testing.T) {
	orig := InsufficientUserPositionFunds()
	assert.Same(t, orig, Wrap(fmt.Errorf("ctx: %w", orig)))

	foreign := Wrap(errors.New("db down"))
	assert.Equal(t, ErrInternal, foreign.Type)
	assert.Equal(t, http.StatusInternalServerError, foreign.HTTPStatus)
}
