package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidRequest:       http.StatusBadRequest,
		CodeAuthenticationFailed: http.StatusUnauthorized,
		CodeNotFound:             http.StatusNotFound,
		CodeGatewayRejected:      http.StatusBadGateway,
		CodeGatewayUnreachable:   http.StatusServiceUnavailable,
		CodeInvalidTransition:    http.StatusInternalServerError,
		Code("made_up"):          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus(), code)
	}
}

func TestFromUnwrapsThroughFmtErrorf(t *testing.T) {
	base := New(CodeNotFound, "transaction not found")
	wrapped := fmt.Errorf("lookup: %w", base)

	assert.Same(t, base, From(wrapped))
	assert.True(t, IsCode(wrapped, CodeNotFound))
}

func TestFromWrapsUnknownAsInternal(t *testing.T) {
	cause := errors.New("disk on fire")
	got := From(cause)

	assert.Equal(t, CodeInternal, got.Code)
	assert.ErrorIs(t, got, cause)
}
