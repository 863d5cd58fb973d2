package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"plc", "did:plc:ewvi7nxzyoun6zhxrhs64oiz", true},
		{"web", "did:web:example.com", true},
		{"empty", "", false},
		{"plain name", "alice", false},
		{"missing method", "did::abc", false},
		{"padded", " did:plc:ewvi7nxzyoun6zhxrhs64oiz", false},
		{"uppercase method", "did:PLC:abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDID(tt.id))
		})
	}
}
