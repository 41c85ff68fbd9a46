package privacy

import (
	"github.com/globalmind/support-platform/pkg/logging"
)

// Guard is the facade the pipeline uses for anonymization and payload
// encryption. It owns the keyring lifecycle.
type Guard struct {
	logger  *logging.Logger
	keyring *Keyring
}

// NewGuard loads (or creates) the keyring at keyFile and returns a ready guard.
func NewGuard(logger *logging.Logger, keyFile string) (*Guard, error) {
	if logger == nil {
		logger = logging.Default()
	}
	kr, err := LoadKeyring(keyFile)
	if err != nil {
		return nil, err
	}
	return &Guard{logger: logger, keyring: kr}, nil
}

// NewGuardWithKeyring wires an existing keyring, used by tests and by the
// maintenance worker which shares the keyring instance.
func NewGuardWithKeyring(logger *logging.Logger, kr *Keyring) *Guard {
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{logger: logger, keyring: kr}
}

// Anonymize derives the pseudonymous identifier for a raw user ID.
func (g *Guard) Anonymize(userID string) string {
	return AnonymizeID(userID)
}

// Scrub masks emails and phone numbers in free text before storage.
func (g *Guard) Scrub(text string) string {
	return ScrubPII(text)
}

// Encrypt seals plaintext under the active key and returns the versioned
// ciphertext blob. Empty plaintext is valid and round-trips to empty.
func (g *Guard) Encrypt(plaintext []byte) (string, error) {
	keyID, material, err := g.keyring.ActiveKey()
	if err != nil {
		return "", err
	}
	return encryptWithKey(keyID, material, plaintext)
}

// Decrypt opens a ciphertext blob produced by Encrypt, using whichever key
// (active or retired) the blob names.
func (g *Guard) Decrypt(blob string) ([]byte, error) {
	return decryptBlob(blob, g.keyring.KeyByID)
}

// Keyring exposes the underlying keyring for rotation and pruning.
func (g *Guard) Keyring() *Keyring { return g.keyring }

// Close zeroizes key material.
func (g *Guard) Close() {
	if g.keyring != nil {
		g.keyring.Close()
	}
}
