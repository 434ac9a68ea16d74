// Package tickets implements the session ticket key ring (C4): a
// process-wide, time-ordered list of ticket keys that encrypts new
// session tickets with the newest key and decrypts incoming tickets by
// looking one up by name (spec §4.4).
package tickets

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/tgragnato/ftpstls/common/constants"
)

// Key is the in-memory ticket key format from spec §6: a 16-byte name,
// a 32-byte AES-256 key, and a 32-byte HMAC-SHA256 key. Never persisted
// to disk.
type Key struct {
	Name      [constants.TicketKeyNameLength]byte
	CipherKey [32]byte
	HMACKey   [32]byte
	CreatedAt time.Time
}

// generateKey creates a fresh key with random name, cipher key, and MAC
// key. The probability that two consecutive rotations collide on name
// is bounded by the RNG, per spec §5's ordering guarantee.
func generateKey(now time.Time) (*Key, error) {
	k := &Key{CreatedAt: now}
	if _, err := rand.Read(k.Name[:]); err != nil {
		return nil, fmt.Errorf("tickets: generate key name: %w", err)
	}
	if _, err := rand.Read(k.CipherKey[:]); err != nil {
		return nil, fmt.Errorf("tickets: generate cipher key: %w", err)
	}
	if _, err := rand.Read(k.HMACKey[:]); err != nil {
		return nil, fmt.Errorf("tickets: generate HMAC key: %w", err)
	}
	return k, nil
}
