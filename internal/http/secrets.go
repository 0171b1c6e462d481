package http

import (
	"fmt"

	"github.com/fernet/fernet-go"
)

// Vault encrypts matriculation numbers before they are persisted and
// decrypts them for the admin export. A nil Vault disables both
// directions; numbers are then dropped rather than stored in plaintext.
type Vault struct {
	key *fernet.Key
}

// NewVault decodes a base64 Fernet key. An empty key returns a nil
// Vault, which callers treat as "encryption unavailable".
func NewVault(encodedKey string) (*Vault, error) {
	if encodedKey == "" {
		return nil, nil
	}
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decoding matriculation key: %w", err)
	}
	return &Vault{key: key}, nil
}

// Encrypt returns the Fernet token for a plaintext matriculation number.
func (v *Vault) Encrypt(plain string) (string, error) {
	if v == nil || plain == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plain), v.key)
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// Decrypt returns the plaintext for a stored token. Unverifiable tokens
// yield an empty string so one bad row cannot break the export.
func (v *Vault) Decrypt(token string) string {
	if v == nil || token == "" {
		return ""
	}
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{v.key})
	return string(plain)
}
