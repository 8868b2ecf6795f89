package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeConflict, "pending bill already exists")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		inner := New(CodeNoReceiptsFound, "no receipt at index")
		outer := fmt.Errorf("withdraw: %w", inner)
		assert.True(t, HasCode(outer, CodeNoReceiptsFound))
	})

	t.Run("foreign error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause survives unwrapping", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "store unavailable")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:               http.StatusBadRequest,
		CodeInvalidInput:             http.StatusBadRequest,
		CodeUnauthorized:             http.StatusUnauthorized,
		CodeForbidden:                http.StatusForbidden,
		CodeNotFound:                 http.StatusNotFound,
		CodeConflict:                 http.StatusConflict,
		CodeValidation:               http.StatusUnprocessableEntity,
		CodeNegativeAmount:           http.StatusUnprocessableEntity,
		CodeTimePredicateUnfulfilled: http.StatusPreconditionFailed,
		CodeNotAuthorizedToWithdraw:  http.StatusForbidden,
		CodeNoReceiptsFound:          http.StatusNotFound,
		CodeInternal:                 http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}

func TestCodeOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}
