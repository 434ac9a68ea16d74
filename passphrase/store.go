// Package passphrase implements the passphrase store (C1): acquisition,
// scoped caching by (sid, kind), and page-locked scrubbing of private
// key passphrases (spec §4.1).
package passphrase

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tgragnato/ftpstls/common/event"
	"github.com/tgragnato/ftpstls/ftpserr"
	"github.com/tgragnato/ftpstls/vhost"
)

// Verifier attempts to use a candidate secret to decrypt or MAC-verify
// the key material at path, returning nil if the secret is correct.
// Implementations live in the creds package so passphrase does not need
// to understand PEM/PKCS12 layouts.
type Verifier func(path string, kind vhost.CredentialKind, candidate []byte) error

// record is the in-memory cache entry, spec §3's "Passphrase Record".
type record struct {
	sid    vhost.SID
	path   string
	kind   vhost.CredentialKind
	secret *Secret
}

// Store is the singleton passphrase cache, shared by the listener and
// its per-session children via fork-time inheritance in the reference
// implementation; in this Go module it is a plain in-process value
// passed by reference (spec §9's "explicit server-wide context value").
type Store struct {
	mu      sync.Mutex
	records map[key]*record

	Provider      *Provider
	PromptFn      func(prompt string) ([]byte, error) // interactive fallback
	MaxPrompts    int
	Dispatcher    event.TLSEventDispatcher
}

type key struct {
	sid  vhost.SID
	kind vhost.CredentialKind
}

// NewStore returns an empty Store. Provider may be nil, in which case
// Acquire falls back to interactive prompting via PromptFn.
func NewStore(provider *Provider, promptFn func(string) ([]byte, error)) *Store {
	return &Store{
		records:    make(map[key]*record),
		Provider:   provider,
		PromptFn:   promptFn,
		MaxPrompts: 3,
	}
}

// Acquire returns the passphrase secret for (vh.SID, kind, path),
// consulting the cache first. A cache hit only counts if the cached
// record's path still matches; otherwise the stale record is scrubbed
// and a fresh acquisition runs (spec §4.1).
func (s *Store) Acquire(ctx context.Context, vh *vhost.VH, kind vhost.CredentialKind, path string, verify Verifier) (*Secret, error) {
	k := key{sid: vh.SID, kind: kind}

	s.mu.Lock()
	if rec, ok := s.records[k]; ok {
		if rec.path == path {
			s.mu.Unlock()
			return rec.secret, nil
		}
		rec.secret.Scrub()
		delete(s.records, k)
	}
	s.mu.Unlock()

	secret, err := s.acquire(ctx, vh, kind, path, verify)
	if err != nil {
		return nil, &ftpserr.PassphraseUnavailable{Err: err}
	}

	s.mu.Lock()
	s.records[k] = &record{sid: vh.SID, path: path, kind: kind, secret: secret}
	s.mu.Unlock()

	if s.Dispatcher != nil {
		s.Dispatcher.OnNewTLSEvent(event.EventOnPassphraseAcquired{SID: uint32(vh.SID), Kind: kind.String()})
	}
	return secret, nil
}

func (s *Store) acquire(ctx context.Context, vh *vhost.VH, kind vhost.CredentialKind, path string, verify Verifier) (*Secret, error) {
	if s.Provider != nil {
		candidate, err := s.Provider.Run(ctx, vh.Name, kind)
		if err != nil {
			return nil, fmt.Errorf("passphrase provider failed: %w", err)
		}
		return s.finalize(candidate, path, kind, verify)
	}

	maxPrompts := s.MaxPrompts
	if maxPrompts <= 0 {
		maxPrompts = 3
	}
	var lastErr error
	for attempt := 0; attempt < maxPrompts; attempt++ {
		candidate, err := s.prompt(path, kind)
		if err != nil {
			return nil, err
		}
		secret, verr := s.finalize(candidate, path, kind, verify)
		if verr == nil {
			return secret, nil
		}
		lastErr = verr
	}
	return nil, fmt.Errorf("passphrase: exhausted %d interactive attempts: %w", maxPrompts, lastErr)
}

func (s *Store) prompt(path string, kind vhost.CredentialKind) ([]byte, error) {
	if s.PromptFn != nil {
		return s.PromptFn(fmt.Sprintf("Passphrase for %s key %s: ", kind, path))
	}
	return defaultPrompt(fmt.Sprintf("Passphrase for %s key %s: ", kind, path))
}

func defaultPrompt(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func (s *Store) finalize(candidate []byte, path string, kind vhost.CredentialKind, verify Verifier) (*Secret, error) {
	if verify != nil {
		if err := verify(path, kind, candidate); err != nil {
			return nil, fmt.Errorf("passphrase verification failed: %w", err)
		}
	}
	seedRNG(candidate)
	secret, lockErr := NewSecret(candidate)
	for i := range candidate {
		candidate[i] = 0
	}
	_ = lockErr // mlock failure is a logged warning upstream, not fatal (§4.1)
	return secret, nil
}

// ScrubVH scrubs and removes every record belonging to sid (spec §4.1,
// "on VH removal").
func (s *Store) ScrubVH(sid vhost.SID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		if k.sid == sid {
			rec.secret.Scrub()
			delete(s.records, k)
		}
	}
}

// ScrubAll scrubs every cached record (spec §4.1, "process shutdown" and
// "successful post-AUTH phase").
func (s *Store) ScrubAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		rec.secret.Scrub()
		delete(s.records, k)
	}
}
