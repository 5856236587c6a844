// Package auth loads the authorized-keys directory and answers
// challenge/response verification and role-lookup queries (§4.4).
package auth

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/iamrichardD/pharos/internal/log"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type authorizedKey struct {
	key   ssh.PublicKey
	roles []string
}

// Manager holds the immutable set of keys loaded at startup. It is safe
// for concurrent use without external locking once Load has returned,
// matching §5's "auth manager is immutable after construction and is
// shared without locking" — the mutex below only guards the one-time
// population during Load.
type Manager struct {
	mu   sync.RWMutex
	keys []authorizedKey
	lg   *log.Logger
}

// NewManager returns an empty manager. Call Load to populate it from a
// keys directory before serving any session.
func NewManager(lg *log.Logger) *Manager {
	if lg == nil {
		lg = log.NewDiscardLogger()
	}
	return &Manager{lg: lg}
}

// Load scans dir (non-recursive) for *.pub files, parses each as an
// OpenSSH public key, and infers roles from the filename stem (§4.4).
// Parse failures log and are skipped; Load itself only fails if dir
// cannot be read at all.
func (m *Manager) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var loaded []authorizedKey
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		full := filepath.Join(dir, e.Name())
		b, err := os.ReadFile(full)
		if err != nil {
			m.lg.Error("failed to read authorized key file", log.KVErr(err), log.KV("path", full))
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey(b)
		if err != nil {
			m.lg.Error("failed to parse authorized key", log.KVErr(err), log.KV("path", full))
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".pub")
		loaded = append(loaded, authorizedKey{key: pub, roles: rolesFromStem(stem)})
	}

	m.mu.Lock()
	m.keys = loaded
	m.mu.Unlock()
	return nil
}

func rolesFromStem(stem string) []string {
	folded := strings.ToLower(stem)
	switch {
	case strings.Contains(folded, "admin"):
		return []string{RoleAdmin}
	case strings.Contains(folded, "user"):
		return []string{RoleUser}
	default:
		return nil
	}
}

// Verify implements the four-step check in §4.4: parse the public key
// (OpenSSH, falling back to base64-decoded raw bytes), confirm it is
// one of the authorized keys, decode the signature, and verify it over
// the raw bytes of the challenge string.
func (m *Manager) Verify(pubKey, sigB64, challenge string) bool {
	pub, ok := m.parsePublicKey(pubKey)
	if !ok {
		return false
	}

	ak, ok := m.findAuthorized(pub)
	if !ok {
		return false
	}

	sigBytes, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	sig := &ssh.Signature{Format: ak.key.Type(), Blob: sigBytes}

	return ak.key.Verify([]byte(challenge), sig) == nil
}

func (m *Manager) parsePublicKey(raw string) (ssh.PublicKey, bool) {
	if pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(raw)); err == nil {
		return pub, true
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, false
	}
	pub, err := ssh.ParsePublicKey(b)
	if err != nil {
		return nil, false
	}
	return pub, true
}

func (m *Manager) findAuthorized(pub ssh.PublicKey) (authorizedKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	marshaled := pub.Marshal()
	for _, ak := range m.keys {
		if string(ak.key.Marshal()) == string(marshaled) {
			return ak, true
		}
	}
	return authorizedKey{}, false
}

// Roles resolves pubKey to the roles discovered at Load time; returns
// nil for an unknown key.
func (m *Manager) Roles(pubKey string) []string {
	pub, ok := m.parsePublicKey(pubKey)
	if !ok {
		return nil
	}
	ak, ok := m.findAuthorized(pub)
	if !ok {
		return nil
	}
	return ak.roles
}
