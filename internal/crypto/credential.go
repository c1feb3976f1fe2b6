package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// FallbackCredential is used when a phone number has fewer than six digits
const FallbackCredential = "admin123"

const credentialDigits = 6

// DefaultCredential derives an admin's initial password from their phone number:
// the last six digits, or FallbackCredential when fewer than six digits are present.
func DefaultCredential(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) < credentialDigits {
		return FallbackCredential
	}
	return string(digits[len(digits)-credentialDigits:])
}

// HashCredential hashes a credential for storage
func HashCredential(credential string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
}

// CheckCredential reports whether credential matches hash
func CheckCredential(hash []byte, credential string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(credential)) == nil
}
