package tickets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/tgragnato/ftpstls/common/constants"
	"github.com/tgragnato/ftpstls/common/event"
	"golang.org/x/sys/unix"
)

// Ring is the process-wide singleton ticket key ring described by spec
// §4.4/§9: an arc-wrapped ordered list with interior mutation under a
// single RWMutex, since rotation is infrequent and handshakes read by
// name far more often than they write.
type Ring struct {
	mu      sync.RWMutex
	keys    []*Key // newest first
	maxAge  time.Duration
	maxCount int

	Dispatcher event.TLSEventDispatcher

	lastDecryptStale   map[[constants.TicketKeyNameLength]byte]bool
	lastDecryptStaleMu sync.Mutex
}

// NewRing creates a ring seeded with one key, per spec §4.4 ("at server
// start, generate one key").
func NewRing(maxAge time.Duration, maxCount int) (*Ring, error) {
	if maxAge <= 0 {
		maxAge = constants.DefaultTicketKeyMaxAge
	}
	if maxCount <= 0 {
		maxCount = constants.DefaultTicketKeyMaxCount
	}
	r := &Ring{
		maxAge:           maxAge,
		maxCount:         maxCount,
		lastDecryptStale: make(map[[constants.TicketKeyNameLength]byte]bool),
	}
	k, err := generateKey(time.Now())
	if err != nil {
		return nil, err
	}
	if err := lockKey(k); err != nil {
		// mlock failure is non-fatal per spec §4.1/§4.4 ("mlocked when
		// privileges permit").
		_ = err
	}
	r.keys = []*Key{k}
	return r, nil
}

func lockKey(k *Key) error {
	if err := unix.Mlock(k.CipherKey[:]); err != nil {
		return err
	}
	return unix.Mlock(k.HMACKey[:])
}

// RelockAll re-applies mlock to every key's backing pages, used after
// fork when page-lock inheritance cannot be assumed (spec §4.4, §5).
func (r *Ring) RelockAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		_ = lockKey(k)
	}
}

// Rotate generates and admits a fresh key.
func (r *Ring) Rotate() error {
	k, err := generateKey(time.Now())
	if err != nil {
		return err
	}
	_ = lockKey(k)
	r.admit(k)
	return nil
}

// admit implements spec §4.4's admission rule: evict all keys older
// than maxAge, then if count == maxCount, evict the oldest.
func (r *Ring) admit(k *Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	fresh := r.keys[:0:0]
	for _, existing := range r.keys {
		if now.Sub(existing.CreatedAt) <= r.maxAge {
			fresh = append(fresh, existing)
		} else {
			scrubKey(existing)
		}
	}
	r.keys = fresh

	r.keys = append([]*Key{k}, r.keys...)
	for len(r.keys) > r.maxCount {
		last := r.keys[len(r.keys)-1]
		scrubKey(last)
		r.keys = r.keys[:len(r.keys)-1]
	}

	if r.Dispatcher != nil {
		r.Dispatcher.OnNewTLSEvent(event.EventOnTicketKeyRotated{KeyName: k.Name, RingLen: len(r.keys)})
	}
}

func scrubKey(k *Key) {
	for i := range k.CipherKey {
		k.CipherKey[i] = 0
	}
	for i := range k.HMACKey {
		k.HMACKey[i] = 0
	}
	_ = unix.Munlock(k.CipherKey[:])
	_ = unix.Munlock(k.HMACKey[:])
}

// Len reports the current number of live keys in the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// RotationInterval is spec §4.4's timer period: min(3600, maxAge-1)
// seconds.
func (r *Ring) RotationInterval() time.Duration {
	interval := r.maxAge - time.Second
	if interval > time.Hour {
		interval = time.Hour
	}
	if interval <= 0 {
		interval = time.Second
	}
	return interval
}

// StartRotationTimer runs Rotate on RotationInterval until stop is closed.
// Kept as a plain goroutine + time.Ticker in the teacher's style rather
// than introducing a scheduling library the pack never uses.
func (r *Ring) StartRotationTimer(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(r.RotationInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = r.Rotate()
			case <-stop:
				return
			}
		}
	}()
}

func (r *Ring) newest() *Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.keys) == 0 {
		return nil
	}
	return r.keys[0]
}

func (r *Ring) byName(name [constants.TicketKeyNameLength]byte) (*Key, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, k := range r.keys {
		if k.Name == name {
			return k, i == 0, true
		}
	}
	return nil, false, false
}

// WrapSession implements tls.Config.WrapSession: it is crypto/tls's
// stateless-ticket encrypt hook, the Go-native equivalent of the
// OpenSSL tlsext_ticket_key_cb encrypt path from spec §4.4. It always
// uses the newest key (spec §4.4: "Encrypt path ... always use the
// newest key").
func (r *Ring) WrapSession(_ tls.ConnectionState, ss *tls.SessionState) ([]byte, error) {
	k := r.newest()
	if k == nil {
		return nil, fmt.Errorf("tickets: no ticket key available")
	}
	plaintext, err := ss.Bytes()
	if err != nil {
		return nil, fmt.Errorf("tickets: marshal session state: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("tickets: generate IV: %w", err)
	}
	block, err := aes.NewCipher(k.CipherKey[:])
	if err != nil {
		return nil, fmt.Errorf("tickets: AES cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, k.HMACKey[:])
	mac.Write(k.Name[:])
	mac.Write(iv)
	mac.Write(ciphertext)
	sum := mac.Sum(nil)

	out := make([]byte, 0, len(k.Name)+len(iv)+len(ciphertext)+len(sum))
	out = append(out, k.Name[:]...)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, sum...)
	return out, nil
}

// UnwrapSession implements tls.Config.UnwrapSession: the decrypt path
// of spec §4.4. The control-vs-data "renew" distinction spec §4.4
// describes (OpenSSL's ticket_key_cb return code 2) has no equivalent
// return value in crypto/tls's stateless-ticket API, since Go always
// treats a successful unwrap as final; this ring instead records
// whether the matched key was non-newest so the handshake engine (C7)
// can decide, at the control-channel layer, whether to force a fresh
// ticket on the next write (see RingRenewHint).
func (r *Ring) UnwrapSession(identity []byte, cs tls.ConnectionState) (*tls.SessionState, error) {
	minLen := constants.TicketKeyNameLength + aes.BlockSize + sha256.Size
	if len(identity) < minLen {
		return nil, nil //nolint:nilnil // crypto/tls treats nil,nil as "ticket not recognized, do a full handshake"
	}

	var name [constants.TicketKeyNameLength]byte
	copy(name[:], identity[:constants.TicketKeyNameLength])

	k, isNewest, found := r.byName(name)
	if !found {
		return nil, nil //nolint:nilnil
	}

	macLen := sha256.Size
	ivEnd := constants.TicketKeyNameLength + aes.BlockSize
	ciphertext := identity[ivEnd : len(identity)-macLen]
	iv := identity[constants.TicketKeyNameLength:ivEnd]
	gotMAC := identity[len(identity)-macLen:]

	mac := hmac.New(sha256.New, k.HMACKey[:])
	mac.Write(name[:])
	mac.Write(iv)
	mac.Write(ciphertext)
	wantMAC := mac.Sum(nil)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return nil, nil //nolint:nilnil
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("tickets: ciphertext not block-aligned")
	}

	block, err := aes.NewCipher(k.CipherKey[:])
	if err != nil {
		return nil, fmt.Errorf("tickets: AES cipher: %w", err)
	}
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)
	plaintext, err := pkcs7Unpad(plainPadded, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("tickets: unpad: %w", err)
	}

	ss, err := tls.ParseSessionState(plaintext)
	if err != nil {
		return nil, fmt.Errorf("tickets: parse session state: %w", err)
	}

	r.recordRenewHint(name, !isNewest)
	_ = cs
	return ss, nil
}

// recordRenewHint stores whether the most recent successful decrypt by
// this key name used a non-newest key.
func (r *Ring) recordRenewHint(name [constants.TicketKeyNameLength]byte, stale bool) {
	r.lastDecryptStaleMu.Lock()
	defer r.lastDecryptStaleMu.Unlock()
	r.lastDecryptStale[name] = stale
}

// RingRenewHint reports whether the last successful UnwrapSession for
// name used a key that is no longer newest, the control-channel
// renewal signal spec §4.4 calls for.
func (r *Ring) RingRenewHint(name [constants.TicketKeyNameLength]byte) bool {
	r.lastDecryptStaleMu.Lock()
	defer r.lastDecryptStaleMu.Unlock()
	return r.lastDecryptStale[name]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
