package booking

import (
	"github.com/google/uuid"
)

// codeAlphabet avoids vowels and look-alike characters so codes are easy
// to read back over chat or phone.
const (
	codeAlphabet = "23456789BCDFGHJKMNPQRSTVWXZ"
	codeLength   = 6
)

// newBookingCode generates a short human-readable code. Uniqueness is
// enforced by the (facility_id, booking_code) constraint, with bounded
// regeneration on collision.
func newBookingCode() string {
	raw := uuid.New()
	code := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		code[i] = codeAlphabet[int(raw[i])%len(codeAlphabet)]
	}
	return string(code)
}
