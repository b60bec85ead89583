package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesSentinel(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"configuration", Configuration("load config", errors.New("missing model")), ErrConfiguration},
		{"transient", Transient("list objects", "logs", context.DeadlineExceeded), ErrTransient},
		{"not found", NotFound("list objects", "ghost", errors.New("NoSuchBucket")), ErrNotFound},
		{"validation", Validationf("analyze_bucket", "bucket_name is required"), ErrValidation},
		{"guardrail", Guardrail("delete"), ErrGuardrail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)
		})
	}
}

func TestError_DoesNotCrossMatch(t *testing.T) {
	err := NotFound("list objects", "ghost", nil)
	assert.False(t, IsTransient(err))
	assert.False(t, IsConfiguration(err))
	assert.True(t, IsNotFound(err))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := Transient("chat", "", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestError_Message(t *testing.T) {
	err := Transient("list objects", "logs", errors.New("SlowDown"))
	assert.Equal(t, "list objects logs: SlowDown", err.Error())

	err = Configuration("llm", nil)
	assert.Equal(t, "llm: configuration", err.Error())
}

func TestProvider_IsNotTransient(t *testing.T) {
	err := Provider("get bucket policy", "logs", errors.New("AccessDenied"))
	assert.False(t, IsTransient(err))
	assert.False(t, IsNotFound(err))
}
