package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid argument", InvalidArgument("bad input"), KindInvalidArgument},
		{"not found", NotFound("missing"), KindNotFound},
		{"conflict", Conflict("duplicate"), KindConflict},
		{"unauthorized", Unauthorized("denied"), KindUnauthorized},
		{"upstream", Upstream("gateway down", errors.New("refused")), KindUpstream},
		{"internal", Internal(errors.New("boom")), KindInternal},
		{"plain error", errors.New("boom"), KindInternal},
		{"wrapped app error", fmt.Errorf("context: %w", NotFound("missing")), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestClientMessage(t *testing.T) {
	assert.Equal(t, "bad input", ClientMessage(InvalidArgument("bad input")))
	assert.Equal(t, "gateway down", ClientMessage(Upstream("gateway down", errors.New("refused"))))

	// Internal causes never leak.
	assert.Equal(t, "internal server error", ClientMessage(Internal(errors.New("pq: syntax error"))))
	assert.Equal(t, "internal server error", ClientMessage(errors.New("pq: syntax error")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Upstream("wrapper", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "root cause")
}
