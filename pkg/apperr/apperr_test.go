package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMapping(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{NotAuthorized(), http.StatusUnauthorized, CodeUnauthorized},
		{NotFound(), http.StatusNotFound, CodeNotFound},
		{BadParams(""), http.StatusBadRequest, CodeBadRequest},
		{BadParams(CodeTooManyPhotos), http.StatusBadRequest, CodeTooManyPhotos},
		{BotDetection(), http.StatusForbidden, CodeBotDetected},
		{Server(errors.New("disk full")), http.StatusInternalServerError, CodeServerError},
	}
	for _, c := range cases {
		assert.Equal(c.status, c.err.Status(), c.err.Error())
		assert.Equal(c.code, c.err.MessageCode(), c.err.Error())
	}
}

func TestFromClassifiesWrappedErrors(t *testing.T) {
	assert := assert.New(t)

	wrapped := fmt.Errorf("delete photo: %w", NotFound())
	assert.Equal(KindNotFound, From(wrapped).Kind)
	assert.True(Is(wrapped, KindNotFound))

	plain := errors.New("connection reset")
	assert.Equal(KindServerError, From(plain).Kind)
	assert.ErrorIs(From(plain), plain)

	assert.Nil(From(nil))
	assert.False(Is(nil, KindServerError))
}
