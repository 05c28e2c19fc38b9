package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newID generates a prefixed random identifier for cases and actions.
func newID(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in much deeper trouble
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
