package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// pairingAlphabet excludes visually confusable characters (0/O, 1/I/L) so the
// code survives being read aloud or typed from a phone screen.
const pairingAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// PairingCodeLength is the number of characters in a pairing code.
const PairingCodeLength = 6

// MaxPairingCodeAttempts bounds the regenerate-on-collision retry loop when
// registering a new client.
const MaxPairingCodeAttempts = 10

// ErrPairingCodeExhausted is the terminal failure after every generation
// attempt collided with an existing code. Treated as an infrastructure-level
// fault, not a caller error.
var ErrPairingCodeExhausted = errors.New("could not generate a unique pairing code")

// NewPairingCode generates a random human-typable pairing code.
func NewPairingCode() (string, error) {
	buf := make([]byte, PairingCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = pairingAlphabet[int(b)%len(pairingAlphabet)]
	}
	return string(buf), nil
}

// NormalizePairingCode canonicalises a user-entered code for lookup. Codes
// are stored uppercase; matching is case-insensitive.
func NormalizePairingCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
