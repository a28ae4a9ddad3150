package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityOfKnownDigest(t *testing.T) {
	assert.Equal(t, Identity("187ef4436122d1cc2f40dc2b92f0eba0"), IdentityOf("a", "b"))
	assert.Equal(t, Identity("57ae28bf468415f1ac819565e2e85fbf"), IdentityOf("alice@example.org", "A123"))
	assert.Equal(t, Identity("d41d8cd98f00b204e9800998ecf8427e"), IdentityOf("", ""))
}

func TestIdentityOfDeterminism(t *testing.T) {
	id1 := IdentityOf("alice@example.org", "A123")
	id2 := IdentityOf("alice@example.org", "A123")

	assert.Equal(t, id1, id2, "IdentityOf must be deterministic")
	assert.Len(t, id1.String(), IdentityLength, "MD5 hex is 32 characters")
	assert.True(t, id1.Valid())
}

func TestIdentityOfChangesWithInput(t *testing.T) {
	base := IdentityOf("alice@example.org", "A123")

	assert.NotEqual(t, base, IdentityOf("bob@example.org", "A123"))
	assert.NotEqual(t, base, IdentityOf("alice@example.org", "A124"))
}

func TestIdentityOfIsPlainConcatenation(t *testing.T) {
	// Ledgers already keyed this way; the boundary is not encoded.
	assert.Equal(t, IdentityOf("ab", "c"), IdentityOf("a", "bc"))
}

func TestIdentityValid(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{"digest", IdentityOf("x", "y"), true},
		{"empty", "", false},
		{"short", "187ef443", false},
		{"uppercase", "187EF4436122D1CC2F40DC2B92F0EBA0", false},
		{"non-hex", "z87ef4436122d1cc2f40dc2b92f0eba0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.Valid())
		})
	}
}

func TestIdentityShort(t *testing.T) {
	assert.Equal(t, "187ef443", IdentityOf("a", "b").Short())
	assert.Equal(t, "abc", Identity("abc").Short())
}
