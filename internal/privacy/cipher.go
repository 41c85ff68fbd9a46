package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/globalmind/support-platform/internal/fault"
)

// Ciphertext blob layout: gm1:<keyID>:<base64(nonce|ciphertext)>. The version
// prefix lets a future format coexist with stored rows.
const blobVersion = "gm1"

func encryptWithKey(keyID string, material, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(material)
	if err != nil {
		return "", fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: init gcm", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fault.Wrap(fault.KindSecurity, fault.CodeKeyUnavailable, "privacy: nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(keyID))
	return fmt.Sprintf("%s:%s:%s", blobVersion, keyID, base64.StdEncoding.EncodeToString(sealed)), nil
}

func decryptBlob(blob string, lookup func(id string) ([]byte, error)) ([]byte, error) {
	parts := strings.SplitN(blob, ":", 3)
	if len(parts) != 3 || parts[0] != blobVersion {
		return nil, fault.New(fault.KindSecurity, fault.CodeDecryptFailed, "privacy: malformed ciphertext blob")
	}
	keyID := parts[1]

	material, err := lookup(keyID)
	if err != nil {
		return nil, err
	}

	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeDecryptFailed, "privacy: decode ciphertext", err)
	}

	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeDecryptFailed, "privacy: init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeDecryptFailed, "privacy: init gcm", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fault.New(fault.KindSecurity, fault.CodeDecryptFailed, "privacy: ciphertext too short")
	}

	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, []byte(keyID))
	if err != nil {
		// Authentication failure: tampering or a wrong key. Never return
		// partial plaintext.
		return nil, fault.Wrap(fault.KindSecurity, fault.CodeDecryptFailed, "privacy: decrypt", err)
	}
	return plaintext, nil
}
