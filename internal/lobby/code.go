package lobby

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet excludes 0/O, 1/I/L so codes stay human-typeable.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newRoomCode generates a random uppercase room code of the given length.
//
// Precondition: length must be positive.
// Postcondition: Returns a code drawn from codeAlphabet, or an error if
// the system entropy source fails.
func newRoomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
