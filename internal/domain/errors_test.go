package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := ErrExecution("the statement could not be executed").WithCause(cause)

	assert.Contains(t, err.Error(), "EXECUTION_ERROR")
	assert.Contains(t, err.Error(), "disk on fire")
	assert.ErrorIs(t, err, cause)
}

func TestAsErrorThroughWrapping(t *testing.T) {
	inner := ErrTimeout(5000)
	wrapped := fmt.Errorf("pipeline: %w", inner)

	ge, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, ge.Kind)
	assert.Equal(t, 5000, ge.Details["timeout_ms"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNamespaceViolation, KindOf(ErrNamespace("nope")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("anything else")))
}

func TestConstructorDetails(t *testing.T) {
	perm := ErrPermission("allow_write", "writes need the allow_write capability")
	assert.Equal(t, KindPermissionDenied, perm.Kind)
	assert.Equal(t, "allow_write", perm.Details["required_permission"])

	rl := ErrRateLimited("trivia", 2500)
	assert.Equal(t, KindRateLimit, rl.Kind)
	assert.Equal(t, int64(2500), rl.Details["retry_after_ms"])
}

func TestWithDetailChaining(t *testing.T) {
	err := ErrExecution("constraint").
		WithDetail("constraint_type", "unique").
		WithDetail("transient", false)
	assert.Equal(t, "unique", err.Details["constraint_type"])
	assert.Equal(t, false, err.Details["transient"])
}

func TestTenantPrefix(t *testing.T) {
	assert.Equal(t, "trivia__", TenantPrefix("trivia"))
	assert.Equal(t, "count_down__", TenantPrefix("count-down"))
	assert.Equal(t, "a_b_c__", TenantPrefix("a-b-c"))
}
