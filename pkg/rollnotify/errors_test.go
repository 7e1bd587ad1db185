package rollnotify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := &Error{Op: "init", Kind: KindConfiguration, Err: ErrMissingAccessToken}

	assert.Equal(t, "rollnotify: init: missing access token", err.Error())
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestError_NilCause(t *testing.T) {
	err := &Error{Op: "flush", Kind: KindTransport}

	assert.Equal(t, "rollnotify: flush: transport error", err.Error())
}

func TestIsKind(t *testing.T) {
	transport := &Error{Op: "post items", Kind: KindTransport, Err: errors.New("connection refused")}
	api := &Error{Op: "post items", Kind: KindAPI, Err: errors.New("api error: invalid token")}

	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"direct", transport, KindTransport, true},
		{"other kind", transport, KindAPI, false},
		{"wrapped with fmt", fmt.Errorf("flush: %w", api), KindAPI, true},
		{"joined", errors.Join(transport, api), KindAPI, true},
		{"nested", &Error{Op: "outer", Kind: KindAssembly, Err: transport}, KindTransport, true},
		{"plain error", errors.New("x"), KindTransport, false},
		{"nil", nil, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind(%v, %s) = %v, want %v", tt.err, tt.kind, got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "serialization", KindSerialization.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
