package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/microshop/platform/internal/pkg/fault"
)

func TestKindOf(t *testing.T) {
	err := fault.New(fault.KindNotFound, "order %s not found", "abc")

	kind, ok := fault.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, fault.KindNotFound, kind)
	assert.Equal(t, "not_found: order abc not found", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	err := fault.Wrap(cause, fault.KindUnavailable, "product service call failed")

	// Kind survives further wrapping with %w.
	outer := fmt.Errorf("create order: %w", err)

	assert.True(t, fault.Is(outer, fault.KindUnavailable))
	assert.ErrorIs(t, outer, cause)
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := fault.KindOf(errors.New("boom"))
	assert.False(t, ok)
	assert.False(t, fault.Is(errors.New("boom"), fault.KindNotFound))
}
