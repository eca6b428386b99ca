package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "peer not found",
			err:  &PeerNotFoundError{},
		},
		{
			name: "selection unresolved",
			err:  &SelectionUnresolvedError{Path: "notes/daily.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
