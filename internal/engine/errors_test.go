package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	assert.Equal(t, "NOT_CACHED: documents are not cached [rfc1 rfc2]",
		newNotCachedError([]string{"rfc1", "rfc2"}).Error())
	assert.Equal(t, "BUSY: reset is not allowed while a resolve is pending",
		newBusyError("reset").Error())
}

func TestError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("cli: %w", newBusyError("replace"))

	assert.True(t, IsBusy(wrapped))
	assert.False(t, IsNotCached(wrapped))
	assert.True(t, IsNotCached(newNotCachedError(nil)))
	assert.False(t, IsBusy(errors.New("BUSY")))
	assert.False(t, IsBusy(nil))
}
