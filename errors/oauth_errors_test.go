package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *OAuth2Error
		code string
	}{
		{NewInvalidRequest("bad form"), InvalidRequest},
		{NewInvalidClient("unknown client"), InvalidClient},
		{NewInvalidScope("scope admin"), InvalidScope},
		{NewServerError("boom"), ServerError},
		{NewUnauthorized("no credentials"), Unauthorized},
		{NewMethodNotAllowed("GET not supported"), MethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.code+": "+tt.err.Description, tt.err.Error())
		})
	}
}
