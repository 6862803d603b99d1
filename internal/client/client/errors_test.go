package client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageAndMatching(t *testing.T) {
	tests := []struct {
		name             string
		err              *Error
		wantText         string
		wantUnavailable  bool
		wantUnauthorized bool
	}{
		{
			name:            "transport",
			err:             &Error{Op: "logout", Kind: KindTransport, Message: "backend unreachable"},
			wantText:        "logout: transport error: backend unreachable",
			wantUnavailable: true,
		},
		{
			name:             "401",
			err:              &Error{Op: "verify-session", Kind: KindHTTP, Status: 401, Message: "Unauthorized"},
			wantText:         "verify-session: http error (status 401): Unauthorized",
			wantUnauthorized: true,
		},
		{
			name:            "504",
			err:             &Error{Op: "register", Kind: KindHTTP, Status: 504, Message: "Gateway Timeout"},
			wantText:        "register: http error (status 504): Gateway Timeout",
			wantUnavailable: true,
		},
		{
			name:     "rejected",
			err:      &Error{Op: "password-login", Kind: KindRejected, Status: 200, Message: "nope"},
			wantText: "password-login: rejected error (status 200): nope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.wantText, tt.err.Error())
			assert.Equal(t, tt.wantUnavailable, errors.Is(wrapped, ErrUnavailable))
			assert.Equal(t, tt.wantUnauthorized, errors.Is(wrapped, ErrUnauthorized))

			got, ok := AsError(wrapped)
			assert.True(t, ok)
			assert.Same(t, tt.err, got)
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &Error{Op: "x", Kind: KindTransport, Err: cause}
	assert.ErrorIs(t, err, cause)
}
