package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("list notebooks: %w", WrapError(CodeMalformedResponse, "no payload line", nil))

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, CodeMalformedResponse, CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeCancelled, CodeOf(context.Canceled))
	assert.Equal(t, CodeTimeout, CodeOf(fmt.Errorf("x: %w", context.DeadlineExceeded)))
	assert.Equal(t, CodeRemoteRejected, CodeOf(Rejected("nope", 418)))
}

func TestErrorMessage(t *testing.T) {
	err := Rejected("RPC wXbhsf failed", 403)
	assert.Equal(t, "RPC wXbhsf failed (HTTP 403)", err.Error())
	assert.Equal(t, 403, StatusOf(fmt.Errorf("wrap: %w", err)))

	wrapped := WrapError(CodeNetworkError, "transport", errors.New("connection reset"))
	assert.Equal(t, "transport: connection reset", wrapped.Error())
}
