package google

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadRequest, ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := WrapError(&googleapi.Error{Code: tt.code, Message: "m"})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.ErrorIs(t, WrapError(&googleapi.Error{Code: http.StatusNotFound}), domain.ErrNotFound)
	assert.Nil(t, WrapError(nil))

	plain := errors.New("network down")
	assert.Equal(t, plain, WrapError(plain))

	server := &googleapi.Error{Code: http.StatusInternalServerError}
	assert.Equal(t, server, WrapError(server))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsUnauthorized(&googleapi.Error{Code: http.StatusUnauthorized}))
	assert.True(t, IsForbidden(ErrForbidden))
	assert.True(t, IsNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.False(t, IsRateLimited(errors.New("x")))
}

func TestNewTokenSource(t *testing.T) {
	tok, err := NewTokenSource("abc").Token()
	assert.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
}
