package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoded(t *testing.T) {
	tests := []struct {
		name    string
		code    Code
		args    []any
		message string
		kind    ErrKind
		status  int
	}{
		{
			name:    "table not found",
			code:    CodeTableNotFound,
			args:    []any{"posts"},
			message: "Table 'posts' not found",
			kind:    ErrKindNotFound,
			status:  http.StatusNotFound,
		},
		{
			name:    "duplicate key has no verb",
			code:    CodeDuplicateKey,
			message: "Duplicate key exception",
			kind:    ErrKindConflict,
			status:  http.StatusConflict,
		},
		{
			name:    "missing argument renders empty",
			code:    CodeRecordNotFound,
			message: "Record '' not found",
			kind:    ErrKindNotFound,
			status:  http.StatusNotFound,
		},
		{
			name:    "operation not supported",
			code:    CodeOperationNotSupported,
			args:    []any{"create"},
			message: "Operation 'create' not supported",
			kind:    ErrKindUnsupported,
			status:  http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Coded(tt.code, tt.args...)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, Status(err))
			assert.True(t, HasCode(err, tt.code))
		})
	}
}

func TestPredicatesTraverseWrapping(t *testing.T) {
	cause := errors.New("driver said no")
	err := fmt.Errorf("select posts: %w", CodedWrap(CodeRecordNotFound, cause, "7"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.Equal(t, CodeRecordNotFound, CodeOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestStatusFallsBackToKind(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, Status(New(ErrKindTimeout, "slow")))
	assert.Equal(t, http.StatusServiceUnavailable, Status(New(ErrKindConnectionFailed, "down")))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	base := Coded(CodeInputValidationFailed, "posts")
	withDetails := base.WithDetails(map[string]any{"title": "cannot be null"})

	require.Nil(t, base.Details)
	assert.Equal(t, "cannot be null", withDetails.Details["title"])
	assert.Equal(t, "[invalid_input] Input validation failed for 'posts'", withDetails.Error())
}
