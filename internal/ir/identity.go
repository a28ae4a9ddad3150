package ir

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// Identity is the anonymous applicant key: 32 lowercase hex characters.
// It is the sole correlation key between destination records and the
// analytics index.
type Identity string

// IdentityLength is the length of an Identity in characters (128-bit digest).
const IdentityLength = 2 * md5.Size

// IdentityOf derives the identity for a pair of submitted fields.
//
// The digest covers the plain concatenation a+b, so ("ab", "c") and
// ("a", "bc") collide. Existing ledgers are keyed this way; changing the
// input encoding would orphan every stored row.
func IdentityOf(a, b string) Identity {
	sum := md5.Sum([]byte(a + b))
	return Identity(hex.EncodeToString(sum[:]))
}

// String returns the hex form of the identity.
func (id Identity) String() string {
	return string(id)
}

// Valid reports whether id has the shape produced by IdentityOf.
func (id Identity) Valid() bool {
	if len(id) != IdentityLength {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short returns the first 8 characters, for log lines.
func (id Identity) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Domain prefixes for content-addressed hashes.
// Version suffix enables future algorithm migration.
const (
	DomainSubmission = "splice/submission/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
