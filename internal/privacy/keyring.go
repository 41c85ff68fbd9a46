package privacy

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/globalmind/support-platform/internal/fault"
)

const keySize = 32 // AES-256

// key is one encryption key with its lifecycle timestamps.
type key struct {
	ID        string    `json:"id"`
	Material  []byte    `json:"material"`
	CreatedAt time.Time `json:"created_at"`
	RetiredAt time.Time `json:"retired_at,omitempty"`
}

type keyringFile struct {
	Active  *key   `json:"active"`
	Retired []*key `json:"retired"`
}

// Keyring manages the active encryption key plus retired keys kept for
// decrypting older records. The on-disk file is mode 0600.
type Keyring struct {
	mu      sync.RWMutex
	path    string
	active  *key
	retired map[string]*key
}

// LoadKeyring reads the keyring file at path, generating a fresh keyring with
// one active key when the file does not exist.
func LoadKeyring(path string) (*Keyring, error) {
	kr := &Keyring{path: path, retired: make(map[string]*key)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		k, genErr := generateKey()
		if genErr != nil {
			return nil, genErr
		}
		kr.active = k
		if err := kr.persist(); err != nil {
			return nil, err
		}
		return kr, nil
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: read keyring", err)
	}

	var f keyringFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: parse keyring", err)
	}
	if f.Active == nil || len(f.Active.Material) != keySize {
		return nil, fault.New(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: keyring has no usable active key")
	}
	kr.active = f.Active
	for _, k := range f.Retired {
		if len(k.Material) == keySize {
			kr.retired[k.ID] = k
		}
	}
	return kr, nil
}

// ActiveKey returns the current key ID and material for encryption.
func (kr *Keyring) ActiveKey() (string, []byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	if kr.active == nil {
		return "", nil, fault.New(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: no active key")
	}
	return kr.active.ID, kr.active.Material, nil
}

// KeyByID returns material for the active or a retired key.
func (kr *Keyring) KeyByID(id string) ([]byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	if kr.active != nil && kr.active.ID == id {
		return kr.active.Material, nil
	}
	if k, ok := kr.retired[id]; ok {
		return k.Material, nil
	}
	return nil, fault.New(fault.KindSecurity, fault.CodeUnknownKey,
		fmt.Sprintf("privacy: unknown key %q", id))
}

// Rotate retires the active key and installs a fresh one. Retired keys remain
// available for decryption until pruned. The swap and the file write happen
// under the lock so a concurrent Encrypt sees either the old key or the new
// one, never neither.
func (kr *Keyring) Rotate() (string, error) {
	fresh, err := generateKey()
	if err != nil {
		return "", err
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.active != nil {
		kr.active.RetiredAt = time.Now().UTC()
		kr.retired[kr.active.ID] = kr.active
	}
	kr.active = fresh
	if err := kr.persist(); err != nil {
		return "", err
	}
	return fresh.ID, nil
}

// RotateIfDue rotates when the active key is older than maxAge. Returns the
// new key ID, or "" when no rotation happened.
func (kr *Keyring) RotateIfDue(maxAge time.Duration) (string, error) {
	kr.mu.RLock()
	due := kr.active == nil || time.Since(kr.active.CreatedAt) >= maxAge
	kr.mu.RUnlock()
	if !due {
		return "", nil
	}
	return kr.Rotate()
}

// PruneRetired zeroizes and removes retired keys older than maxAge. Records
// encrypted under a pruned key become unrecoverable, which is the retention
// guarantee working as intended.
func (kr *Keyring) PruneRetired(maxAge time.Duration) (int, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	pruned := 0
	for id, k := range kr.retired {
		if !k.RetiredAt.IsZero() && k.RetiredAt.Before(cutoff) {
			zeroize(k.Material)
			delete(kr.retired, id)
			pruned++
		}
	}
	if pruned == 0 {
		return 0, nil
	}
	if err := kr.persist(); err != nil {
		return pruned, err
	}
	return pruned, nil
}

// ActiveKeyAge returns how long the current active key has been in service.
func (kr *Keyring) ActiveKeyAge() time.Duration {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	if kr.active == nil {
		return 0
	}
	return time.Since(kr.active.CreatedAt)
}

// RetiredCount returns the number of retired keys still held.
func (kr *Keyring) RetiredCount() int {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return len(kr.retired)
}

// Close zeroizes all key material in memory. The keyring is unusable after.
func (kr *Keyring) Close() {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	if kr.active != nil {
		zeroize(kr.active.Material)
		kr.active = nil
	}
	for id, k := range kr.retired {
		zeroize(k.Material)
		delete(kr.retired, id)
	}
}

// persist writes the keyring file. Caller holds the write lock (or is still
// single-threaded during load).
func (kr *Keyring) persist() error {
	f := keyringFile{Active: kr.active}
	for _, k := range kr.retired {
		f.Retired = append(f.Retired, k)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: encode keyring", err)
	}
	if err := os.WriteFile(kr.path, data, 0o600); err != nil {
		return fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: write keyring", err)
	}
	return nil
}

func generateKey() (*key, error) {
	material := make([]byte, keySize)
	if _, err := rand.Read(material); err != nil {
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: generate key", err)
	}
	return &key{
		ID:        uuid.NewString(),
		Material:  material,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
