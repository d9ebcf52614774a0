package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"gateway", fmt.Errorf("send: %w", ErrGateway), true},
		{"permanent gateway", fmt.Errorf("%w: %w: status 401", ErrGateway, ErrPermanent), false},
		{"profile unavailable", ErrProfileUnavailable, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
