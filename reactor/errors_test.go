package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterruptModeErrorCodeString(t *testing.T) {
	cases := map[InterruptModeErrorCode]string{
		ErrCodeInval:               "INVAL",
		ErrCodeNotSup:              "NOTSUP",
		ErrCodePerm:                "PERM",
		ErrCodeBusy:                "BUSY",
		InterruptModeErrorCode(99): "UNKNOWN",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.String())
	}
}

func TestInterruptModeErrorMessage(t *testing.T) {
	err := &InterruptModeError{Code: ErrCodeBusy, Lcore: 3}
	assert.Contains(t, err.Error(), "BUSY")
	assert.Contains(t, err.Error(), "3")

	err.Message = "transition already in flight"
	assert.Contains(t, err.Error(), "transition already in flight")
}

func TestInterruptModeErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &InterruptModeError{Code: ErrCodeInval, Cause: cause}
	assert.True(t, errors.Is(err, cause))
}
