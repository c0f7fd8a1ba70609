package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError_KnownCode(t *testing.T) {
	e := NewError(ErrInvalidCredentials)

	assert.Equal(t, ErrInvalidCredentials, e.Code)
	assert.Equal(t, "Incorrect username or password.", e.Message)
}

func TestNewError_TemplateDetails(t *testing.T) {
	e := NewError(ErrUserAlreadyExists, "alice")
	assert.Equal(t, `Username "alice" is already taken.`, e.Message)

	unknownType := NewError(ErrUnknownPacketType, "dance")
	assert.Equal(t, `Unknown packet type "dance".`, unknownType.Message)
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	e := NewError(999999)

	assert.Equal(t, ErrUnknown, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
}

func TestEnumerationResistance(t *testing.T) {
	// Wrong password and unknown user must be indistinguishable on the wire.
	assert.Equal(t, NewError(ErrInvalidCredentials).Message, NewError(ErrInvalidCredentials).Message)
	assert.NotContains(t, NewError(ErrInvalidCredentials).Message, "exist")
}
