package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("cliente"), http.StatusNotFound},
		{AlreadyExists("dup"), http.StatusConflict},
		{Conflict("state"), http.StatusConflict},
		{Invalid("bad"), http.StatusBadRequest},
		{Forbidden(), http.StatusForbidden},
		{Unauthorized(), http.StatusUnauthorized},
		{New(CodeExternal, "cep"), http.StatusBadGateway},
		{Database(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestCodeOfWrapped(t *testing.T) {
	inner := NotFound("vistoria")
	wrapped := fmt.Errorf("loading: %w", inner)
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(nil, CodeNotFound))
	assert.Equal(t, "vistoria não encontrado(a)", PublicMessage(wrapped))
	assert.Equal(t, "erro interno", PublicMessage(errors.New("x")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
