package vault

import (
	"fmt"

	"github.com/tripmate/authkit/internal/util"
)

// envelope is a sealed record containing the AES-256-GCM encrypted credential.
type envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// sealRecord encrypts plaintext into an envelope using the given sealing key
// and AAD.
func sealRecord(sealingKey, plaintext, aad []byte) (*envelope, error) {
	cipher, err := util.EncryptAESWithAAD(plaintext, sealingKey, aad)
	if err != nil {
		return nil, err
	}

	// util.EncryptAESWithAAD returns nonce || ciphertext.
	return &envelope{
		Ver:        1,
		Scheme:     "aes256gcm",
		Nonce:      cipher[:12],
		Ciphertext: cipher[12:],
	}, nil
}

// openRecord decrypts an envelope using the given sealing key and AAD.
func openRecord(sealingKey []byte, env *envelope, aad []byte) ([]byte, error) {
	if env.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Ver)
	}
	if env.Scheme != "aes256gcm" {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", env.Scheme)
	}

	fullCipher := make([]byte, len(env.Nonce)+len(env.Ciphertext))
	copy(fullCipher, env.Nonce)
	copy(fullCipher[len(env.Nonce):], env.Ciphertext)

	return util.DecryptAESWithAAD(fullCipher, sealingKey, aad)
}
