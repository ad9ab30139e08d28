package meeting

import (
	"crypto/sha256"
	"strings"

	"github.com/google/uuid"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz"

// FallbackCode derives a Meet-style code (xxx-xxxx-xxx) from the appointment
// id, so retries for the same appointment yield the same link.
func FallbackCode(appointmentID uuid.UUID) string {
	sum := sha256.Sum256(appointmentID[:])

	var b strings.Builder
	b.Grow(12)
	for i := 0; i < 10; i++ {
		if i == 3 || i == 7 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(sum[i])%len(codeAlphabet)])
	}
	return b.String()
}

// FallbackURL joins base and code.
func FallbackURL(base, code string) string {
	return strings.TrimRight(base, "/") + "/" + code
}
